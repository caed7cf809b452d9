package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
)

type ledgerEngine interface {
	Submit(ctx context.Context, sub ledger.Submission) (*ledger.Receipt, error)
	Reverse(ctx context.Context, req ledger.ReverseRequest) (*ledger.Receipt, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Entries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type accountReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type Config struct {
	// TxLimit caps a single transfer, in minor units. Zero disables it.
	TxLimit       int64
	MaxRetries    uint64
	SubmitTimeout time.Duration
	// InitialInterval is the first backoff wait between retries.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		TxLimit:         10_000_000,
		MaxRetries:      4,
		SubmitTimeout:   5 * time.Second,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Outcome is what a caller sees of a submission: the recorded transaction,
// whether it was replayed, and how many engine attempts it took.
type Outcome struct {
	Transaction *domain.Transaction
	Replayed    bool
	Attempts    int
}

type Service struct {
	engine   ledgerEngine
	accounts accountReader
	config   Config
}

func NewService(engine ledgerEngine, accounts accountReader, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	return &Service{engine: engine, accounts: accounts, config: cfg}
}
