package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
)

// Store is the Postgres ledger store. Row locks come from SELECT ... FOR
// UPDATE and are bounded by lock_timeout.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration

	accounts     *AccountRepository
	transactions *TransactionRepository
	entries      *EntryRepository
	supply       *SupplyRepository
	outbox       *OutboxRepository
}

var _ ledger.Store = (*Store)(nil)

func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	entries := NewEntryRepository(db)
	return &Store{
		db:           db,
		lockTimeout:  lockTimeout,
		accounts:     NewAccountRepository(db),
		transactions: NewTransactionRepository(db, entries),
		entries:      entries,
		supply:       NewSupplyRepository(db),
		outbox:       NewOutboxRepository(db),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Begin: %w", err)
	}
	if s.lockTimeout > 0 {
		// SET does not accept bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("Begin: lock timeout: %w", err)
		}
	}
	return &pgTx{store: s, tx: tx}, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	return s.accounts.Create(ctx, a)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	return s.accounts.GetByOwnerID(ctx, ownerID)
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrTransactionNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if t.State == domain.StatePending {
		return nil, fmt.Errorf("GetTransaction: %w", domain.ErrTransactionNotFound)
	}
	return t, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	return s.entries.GetByAccountID(ctx, accountID, limit, offset)
}

func (s *Store) SupplySnapshot(ctx context.Context) (int64, int64, int64, error) {
	return s.supply.Snapshot(ctx)
}

// DispatchOutbox hands up to limit pending audit records to publish, then
// marks each dispatched, or failed once maxAttempts is reached. Records
// claimed by a concurrent relay are skipped.
func (s *Store) DispatchOutbox(ctx context.Context, limit, maxAttempts int, publish func(context.Context, domain.OutboxRecord) error) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("DispatchOutbox: begin tx: %w", err)
	}
	defer tx.Rollback()

	records, err := s.outbox.ClaimPending(ctx, tx, limit)
	if err != nil {
		return 0, fmt.Errorf("DispatchOutbox: %w", err)
	}

	dispatched := 0
	for _, rec := range records {
		status := domain.OutboxStatusDispatched
		if err := publish(ctx, rec); err != nil {
			status = domain.OutboxStatusPending
			if rec.Attempts+1 >= maxAttempts {
				status = domain.OutboxStatusFailed
			}
		} else {
			dispatched++
		}
		if err := s.outbox.UpdateStatus(ctx, tx, rec.ID, status); err != nil {
			return 0, fmt.Errorf("DispatchOutbox: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("DispatchOutbox: commit: %w", err)
	}
	return dispatched, nil
}

type pgTx struct {
	store     *Store
	tx        *sql.Tx
	savepoint bool
	done      bool
}

const applySavepoint = "ledger_apply"

func (t *pgTx) ReserveKey(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	inserted, err := t.store.transactions.InsertPending(ctx, t.tx, txn)
	if err != nil {
		return nil, fmt.Errorf("ReserveKey: %w", err)
	}
	if !inserted {
		existing, err := t.store.transactions.GetByIdempotencyKey(ctx, t.tx, txn.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("ReserveKey: %w", err)
		}
		return existing, nil
	}

	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+applySavepoint); err != nil {
		return nil, fmt.Errorf("ReserveKey: savepoint: %w", err)
	}
	t.savepoint = true
	return nil, nil
}

func (t *pgTx) LockAccounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	result := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range ledger.SortedIDs(ids) {
		acct, err := t.store.accounts.GetForUpdate(ctx, t.tx, id)
		if err != nil {
			return nil, fmt.Errorf("LockAccounts: %w", err)
		}
		result[id] = acct
	}
	return result, nil
}

func (t *pgTx) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := t.store.transactions.GetForUpdate(ctx, t.tx, id)
	if err != nil {
		return nil, fmt.Errorf("LockTransaction: %w", err)
	}
	return txn, nil
}

func (t *pgTx) UpdateBalance(ctx context.Context, id uuid.UUID, balance, expectedVersion int64) error {
	return t.store.accounts.UpdateBalance(ctx, t.tx, id, balance, expectedVersion)
}

func (t *pgTx) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus, expectedVersion int64) error {
	return t.store.accounts.UpdateStatus(ctx, t.tx, id, status, expectedVersion)
}

func (t *pgTx) AdjustSupply(ctx context.Context, minted, burned int64) error {
	return t.store.supply.Adjust(ctx, t.tx, minted, burned)
}

func (t *pgTx) NextSequence(ctx context.Context, n int) (int64, int64, error) {
	return t.store.supply.NextSequence(ctx, t.tx, n)
}

func (t *pgTx) InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	for i := range entries {
		if err := t.store.entries.Create(ctx, t.tx, &entries[i]); err != nil {
			return fmt.Errorf("InsertEntries: %w", err)
		}
	}
	return nil
}

func (t *pgTx) Finalize(ctx context.Context, txn *domain.Transaction) error {
	if err := t.store.transactions.Finalize(ctx, t.tx, txn); err != nil {
		return err
	}
	if err := t.store.outbox.Create(ctx, t.tx, domain.NewEvent(txn)); err != nil {
		return fmt.Errorf("Finalize: outbox: %w", err)
	}
	return nil
}

func (t *pgTx) MarkReversed(ctx context.Context, id, reversedBy uuid.UUID) error {
	return t.store.transactions.MarkReversed(ctx, t.tx, id, reversedBy)
}

func (t *pgTx) Discard(ctx context.Context) error {
	if !t.savepoint {
		return fmt.Errorf("Discard: no key reserved")
	}
	if _, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+applySavepoint); err != nil {
		return fmt.Errorf("Discard: %w", err)
	}
	return nil
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", mapPQError(err))
	}
	t.done = true
	return nil
}

func (t *pgTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("Rollback: %w", err)
	}
	return nil
}
