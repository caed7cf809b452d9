package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
)

var errTxDone = errors.New("transaction already finished")

type tx struct {
	store *Store
	done  bool

	key     string
	keySlot chan struct{}
	pending *domain.Transaction

	held     []chan struct{}
	locked   map[uuid.UUID]bool
	holdsSeq bool

	staged    map[uuid.UUID]*domain.Account
	minted    int64
	burned    int64
	txSeq     int64
	lastEntry int64
	entries   []domain.LedgerEntry
	final     *domain.Transaction
	reversed  map[uuid.UUID]uuid.UUID
}

func (t *tx) ReserveKey(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	s := t.store
	for {
		s.mu.Lock()
		if id, ok := s.byKey[txn.IdempotencyKey]; ok {
			existing := cloneTxn(s.txns[id])
			s.mu.Unlock()
			return existing, nil
		}
		slot, busy := s.inflight[txn.IdempotencyKey]
		if !busy {
			t.keySlot = make(chan struct{})
			s.inflight[txn.IdempotencyKey] = t.keySlot
			t.key = txn.IdempotencyKey
			t.pending = cloneTxn(txn)
			s.mu.Unlock()
			return nil, nil
		}
		s.mu.Unlock()

		timer := time.NewTimer(s.lockTimeout)
		select {
		case <-slot:
			timer.Stop()
		case <-timer.C:
			return nil, fmt.Errorf("ReserveKey: %w", domain.ErrConcurrentModification)
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("ReserveKey: %w: %w", domain.ErrConcurrentModification, ctx.Err())
		}
	}
}

func (t *tx) LockAccounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	s := t.store
	out := make(map[uuid.UUID]*domain.Account, len(ids))
	for _, id := range ledger.SortedIDs(ids) {
		if _, err := s.GetAccount(ctx, id); err != nil {
			return nil, fmt.Errorf("LockAccounts: %s: %w", id, domain.ErrAccountNotFound)
		}
		if !t.locked[id] {
			ch := s.lockChan(s.accountLocks, id)
			if err := s.acquire(ctx, ch); err != nil {
				return nil, fmt.Errorf("LockAccounts: %w", err)
			}
			t.held = append(t.held, ch)
			t.locked[id] = true
		}
		a, err := s.GetAccount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("LockAccounts: %w", err)
		}
		out[id] = a
	}
	return out, nil
}

func (t *tx) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s := t.store
	if _, err := s.GetTransaction(ctx, id); err != nil {
		return nil, fmt.Errorf("LockTransaction: %w", domain.ErrNotFound)
	}
	ch := s.lockChan(s.txnLocks, id)
	if err := s.acquire(ctx, ch); err != nil {
		return nil, fmt.Errorf("LockTransaction: %w", err)
	}
	t.held = append(t.held, ch)
	return s.GetTransaction(ctx, id)
}

func (t *tx) stage(id uuid.UUID, expectedVersion int64) (*domain.Account, error) {
	if !t.locked[id] {
		return nil, fmt.Errorf("account %s not locked", id)
	}
	if a, ok := t.staged[id]; ok {
		if a.Version != expectedVersion {
			return nil, domain.ErrConcurrentModification
		}
		return a, nil
	}
	t.store.mu.RLock()
	current := *t.store.accounts[id]
	t.store.mu.RUnlock()
	if current.Version != expectedVersion {
		return nil, domain.ErrConcurrentModification
	}
	t.staged[id] = &current
	return &current, nil
}

func (t *tx) UpdateBalance(ctx context.Context, id uuid.UUID, balance, expectedVersion int64) error {
	a, err := t.stage(id, expectedVersion)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}
	a.Balance = balance
	a.Version = expectedVersion + 1
	return nil
}

func (t *tx) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AccountStatus, expectedVersion int64) error {
	a, err := t.stage(id, expectedVersion)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	a.Status = status
	a.Version = expectedVersion + 1
	return nil
}

func (t *tx) AdjustSupply(ctx context.Context, minted, burned int64) error {
	t.minted += minted
	t.burned += burned
	return nil
}

func (t *tx) NextSequence(ctx context.Context, n int) (int64, int64, error) {
	s := t.store
	if !t.holdsSeq {
		if err := s.acquire(ctx, s.sequence); err != nil {
			return 0, 0, fmt.Errorf("NextSequence: %w", err)
		}
		t.holdsSeq = true
	}
	s.mu.RLock()
	txSeq, entrySeq := s.txSeq, s.entrySeq
	s.mu.RUnlock()

	t.txSeq = txSeq + 1
	t.lastEntry = entrySeq + int64(n)
	return t.txSeq, entrySeq + 1, nil
}

func (t *tx) InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	t.entries = append(t.entries, entries...)
	return nil
}

func (t *tx) Finalize(ctx context.Context, txn *domain.Transaction) error {
	if t.pending == nil || t.pending.ID != txn.ID {
		return fmt.Errorf("Finalize: transaction %s was not reserved in this tx", txn.ID)
	}
	t.final = cloneTxn(txn)
	return nil
}

func (t *tx) MarkReversed(ctx context.Context, id, reversedBy uuid.UUID) error {
	t.reversed[id] = reversedBy
	return nil
}

func (t *tx) Discard(ctx context.Context) error {
	t.staged = make(map[uuid.UUID]*domain.Account)
	t.minted, t.burned = 0, 0
	t.txSeq, t.lastEntry = 0, 0
	t.entries = nil
	t.final = nil
	t.reversed = make(map[uuid.UUID]uuid.UUID)
	if t.holdsSeq {
		<-t.store.sequence
		t.holdsSeq = false
	}
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("Commit: %w", errTxDone)
	}
	s := t.store
	defer t.release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.commitHook != nil {
		if err := s.commitHook(); err != nil {
			return fmt.Errorf("Commit: %w", err)
		}
	}

	for id, a := range t.staged {
		if s.accounts[id].Version != a.Version-1 {
			return fmt.Errorf("Commit: %w", domain.ErrConcurrentModification)
		}
	}

	now := time.Now().UTC()
	for id, a := range t.staged {
		a.UpdatedAt = now
		s.accounts[id] = a
	}
	s.minted += t.minted
	s.burned += t.burned
	if t.txSeq != 0 {
		s.txSeq = t.txSeq
		s.entrySeq = t.lastEntry
	}
	for _, e := range t.entries {
		s.entries = append(s.entries, e)
		s.byAccount[e.AccountID] = append(s.byAccount[e.AccountID], len(s.entries)-1)
	}
	if t.final != nil {
		s.txns[t.final.ID] = t.final
		s.byKey[t.final.IdempotencyKey] = t.final.ID
	}
	for id, by := range t.reversed {
		orig := s.txns[id]
		orig.State = domain.StateReversed
		reversedBy := by
		orig.ReversedBy = &reversedBy
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

// release frees every lock and key slot held by the tx. Must be called
// without s.mu held.
func (t *tx) release() {
	t.done = true
	s := t.store
	if t.holdsSeq {
		<-s.sequence
		t.holdsSeq = false
	}
	for _, ch := range t.held {
		<-ch
	}
	t.held = nil
	if t.keySlot != nil {
		s.mu.Lock()
		delete(s.inflight, t.key)
		s.mu.Unlock()
		close(t.keySlot)
		t.keySlot = nil
	}
}
