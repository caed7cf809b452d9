package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

// Store is the durable home of accounts, transactions and entries. Reads
// outside a Tx see only committed state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)

	// SupplySnapshot reads the supply counters and the sum of all balances
	// from a single consistent view.
	SupplySnapshot(ctx context.Context) (minted, burned, balances int64, err error)
}

// Tx is one atomic unit of work. Nothing staged through a Tx is visible to
// other callers until Commit returns nil; Rollback after Commit is a no-op.
type Tx interface {
	// ReserveKey claims txn.IdempotencyKey for a new pending transaction.
	// When the key is already recorded the existing transaction is returned
	// and nothing is staged. An identical key held by an in-flight Tx blocks
	// until that Tx finishes or the lock timeout elapses.
	ReserveKey(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error)

	// LockAccounts takes exclusive locks in canonical id order and returns
	// the locked rows. Missing accounts yield domain.ErrAccountNotFound; lock
	// wait timeouts yield domain.ErrConcurrentModification.
	LockAccounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Account, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	UpdateBalance(ctx context.Context, id uuid.UUID, balance, expectedVersion int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus, expectedVersion int64) error
	AdjustSupply(ctx context.Context, minted, burned int64) error

	// NextSequence allocates the transaction sequence and a contiguous run
	// of n entry sequences starting at firstEntry. The allocation is held
	// until the Tx ends so sequence order matches commit order.
	NextSequence(ctx context.Context, n int) (txSeq, firstEntry int64, err error)
	InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error

	// Finalize persists the transaction's terminal state and its audit
	// record.
	Finalize(ctx context.Context, txn *domain.Transaction) error
	MarkReversed(ctx context.Context, id, reversedBy uuid.UUID) error

	// Discard drops everything staged after ReserveKey, keeping only the
	// pending transaction so it can be finalized as rejected.
	Discard(ctx context.Context) error

	Commit() error
	Rollback() error
}
