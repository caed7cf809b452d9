package repository

import (
	"context"
	"database/sql"
	"fmt"
)

type SupplyRepository struct {
	db *sql.DB
}

func NewSupplyRepository(db *sql.DB) *SupplyRepository {
	return &SupplyRepository{db: db}
}

func (r *SupplyRepository) Adjust(ctx context.Context, tx *sql.Tx, minted, burned int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE token_supply SET minted = minted + $1, burned = burned + $2 WHERE id = 1`,
		minted, burned,
	)
	if err != nil {
		return fmt.Errorf("Adjust: %w", mapPQError(err))
	}
	return nil
}

// NextSequence bumps the counter row. The row lock it takes is held until
// the surrounding transaction ends.
func (r *SupplyRepository) NextSequence(ctx context.Context, tx *sql.Tx, entries int) (int64, int64, error) {
	var txSeq, lastEntry int64
	err := tx.QueryRowContext(ctx,
		`UPDATE ledger_sequence SET tx_seq = tx_seq + 1, entry_seq = entry_seq + $1
		WHERE id = 1 RETURNING tx_seq, entry_seq`,
		entries,
	).Scan(&txSeq, &lastEntry)
	if err != nil {
		return 0, 0, fmt.Errorf("NextSequence: %w", mapPQError(err))
	}
	return txSeq, lastEntry - int64(entries) + 1, nil
}

func (r *SupplyRepository) Snapshot(ctx context.Context) (int64, int64, int64, error) {
	var minted, burned, balances int64
	err := r.db.QueryRowContext(ctx,
		`SELECT s.minted, s.burned, (SELECT COALESCE(SUM(balance), 0) FROM accounts)
		FROM token_supply s WHERE s.id = 1`,
	).Scan(&minted, &burned, &balances)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("Snapshot: %w", err)
	}
	return minted, burned, balances, nil
}
