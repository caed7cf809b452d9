package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

const transactionColumns = `id, idempotency_key, request_hash, kind, state,
	supply_affecting, reason_code, reversal_of, reversed_by, memo, sequence,
	created_at, committed_at`

type TransactionRepository struct {
	db      *sql.DB
	entries *EntryRepository
}

func NewTransactionRepository(db *sql.DB, entries *EntryRepository) *TransactionRepository {
	return &TransactionRepository{db: db, entries: entries}
}

// InsertPending claims the idempotency key. It reports false when the key
// is already taken; a concurrent uncommitted claim makes it wait first.
func (r *TransactionRepository) InsertPending(ctx context.Context, tx *sql.Tx, t *domain.Transaction) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, idempotency_key, request_hash, kind, state, supply_affecting,
			reversal_of, memo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		t.ID, t.IdempotencyKey, t.RequestHash, t.Kind, t.State, t.SupplyAffecting,
		t.ReversalOf, t.Memo, t.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("InsertPending: %w", mapPQError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertPending: rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := r.get(ctx, r.db, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, q querier, key string) (*domain.Transaction, error) {
	t, err := r.get(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key)
	if err != nil {
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	t, err := r.get(ctx, tx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) get(ctx context.Context, q querier, query string, arg any) (*domain.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, mapPQError(err)
	}
	t.Entries, err = r.entries.GetByTransactionID(ctx, q, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransactionRepository) Finalize(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	var seq sql.NullInt64
	if t.Sequence != 0 {
		seq = sql.NullInt64{Int64: t.Sequence, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		SET state = $1, reason_code = $2, sequence = $3, committed_at = $4, supply_affecting = $5
		WHERE id = $6 AND state = $7`,
		t.State, t.ReasonCode, seq, t.CommittedAt, t.SupplyAffecting,
		t.ID, domain.StatePending,
	)
	if err != nil {
		return fmt.Errorf("Finalize: %w", mapPQError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finalize: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Finalize: transaction %s is not pending", t.ID)
	}
	return nil
}

func (r *TransactionRepository) MarkReversed(ctx context.Context, tx *sql.Tx, id, reversedBy uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET state = $1, reversed_by = $2
		WHERE id = $3 AND state = $4`,
		domain.StateReversed, reversedBy, id, domain.StateCommitted,
	)
	if err != nil {
		return fmt.Errorf("MarkReversed: %w", mapPQError(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkReversed: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("MarkReversed: %w", domain.ErrAlreadyReversed)
	}
	return nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var (
		t   domain.Transaction
		seq sql.NullInt64
	)
	err := s.Scan(
		&t.ID, &t.IdempotencyKey, &t.RequestHash, &t.Kind, &t.State,
		&t.SupplyAffecting, &t.ReasonCode, &t.ReversalOf, &t.ReversedBy, &t.Memo, &seq,
		&t.CreatedAt, &t.CommittedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Sequence = seq.Int64
	return &t, nil
}
