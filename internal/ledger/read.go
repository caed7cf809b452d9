package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

func (e *Engine) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := e.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (e *Engine) Entries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, fmt.Errorf("Entries: limit %d offset %d: %w", limit, offset, domain.ErrInvalidRequest)
	}
	entries, total, err := e.store.ListEntries(ctx, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("Entries: %w", err)
	}
	return entries, total, nil
}

type SupplyReport struct {
	Token       domain.Token
	Circulating int64
	BalanceSum  int64
	Conserved   bool
}

// Supply checks minted - burned against the sum of all balances.
func (e *Engine) Supply(ctx context.Context) (*SupplyReport, error) {
	minted, burned, balances, err := e.store.SupplySnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("Supply: %w", err)
	}

	tok := e.opts.Token
	tok.Minted = minted
	tok.Burned = burned

	return &SupplyReport{
		Token:       tok,
		Circulating: tok.Circulating(),
		BalanceSum:  balances,
		Conserved:   tok.Circulating() == balances,
	}, nil
}
