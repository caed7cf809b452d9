package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
)

const outboxColumns = `id, transaction_id, payload, status, attempts, last_attempt, created_at`

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx *sql.Tx, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("Create: marshal: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_outbox (id, transaction_id, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), event.TransactionID, payload, domain.OutboxStatusPending, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("Create: %w", mapPQError(err))
	}
	return nil
}

// ClaimPending locks up to limit pending records. Rows locked by another
// relay are skipped.
func (r *OutboxRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.OutboxRecord, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM audit_outbox
		WHERE status = $1 ORDER BY created_at, transaction_id LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.OutboxStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var records []domain.OutboxRecord
	for rows.Next() {
		rec, err := scanOutboxRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return records, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.OutboxStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE audit_outbox SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func scanOutboxRecord(s scanner) (*domain.OutboxRecord, error) {
	var rec domain.OutboxRecord
	var payload []byte
	err := s.Scan(
		&rec.ID, &rec.TransactionID, &payload, &rec.Status,
		&rec.Attempts, &rec.LastAttempt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}
