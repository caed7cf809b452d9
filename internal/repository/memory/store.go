// Package memory is a process-local ledger store. Accounts and transactions
// are guarded by per-id channel locks, so transfers over disjoint accounts
// never wait on each other.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
)

type Store struct {
	mu sync.RWMutex

	accounts  map[uuid.UUID]*domain.Account
	txns      map[uuid.UUID]*domain.Transaction
	byKey     map[string]uuid.UUID
	entries   []domain.LedgerEntry
	byAccount map[uuid.UUID][]int
	minted    int64
	burned    int64
	txSeq     int64
	entrySeq  int64

	accountLocks map[uuid.UUID]chan struct{}
	txnLocks     map[uuid.UUID]chan struct{}
	inflight     map[string]chan struct{}
	sequence     chan struct{}

	lockTimeout time.Duration
	commitHook  func() error
}

var _ ledger.Store = (*Store)(nil)

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 2 * time.Second
	}
	return &Store{
		accounts:     make(map[uuid.UUID]*domain.Account),
		txns:         make(map[uuid.UUID]*domain.Transaction),
		byKey:        make(map[string]uuid.UUID),
		byAccount:    make(map[uuid.UUID][]int),
		accountLocks: make(map[uuid.UUID]chan struct{}),
		txnLocks:     make(map[uuid.UUID]chan struct{}),
		inflight:     make(map[string]chan struct{}),
		sequence:     make(chan struct{}, 1),
		lockTimeout:  lockTimeout,
	}
}

// SetCommitHook installs a function run before every commit; a non-nil
// error aborts the commit as a storage failure.
func (s *Store) SetCommitHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Begin: %w", err)
	}
	return &tx{
		store:    s,
		locked:   make(map[uuid.UUID]bool),
		staged:   make(map[uuid.UUID]*domain.Account),
		reversed: make(map[uuid.UUID]uuid.UUID),
	}, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("CreateAccount: account %s already exists", a.ID)
	}
	cp := *a
	s.accounts[a.ID] = &cp
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("GetAccount: %w", domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("GetTransaction: %w", domain.ErrTransactionNotFound)
	}
	return cloneTxn(t), nil
}

// ListEntries returns an account's entries newest first.
func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byAccount[accountID]
	total := len(idx)
	if offset < 0 {
		offset = 0
	}

	var out []domain.LedgerEntry
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[idx[i]])
	}
	return out, total, nil
}

func (s *Store) SupplySnapshot(ctx context.Context) (int64, int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, a := range s.accounts {
		sum += a.Balance
	}
	return s.minted, s.burned, sum, nil
}

func (s *Store) lockChan(m map[uuid.UUID]chan struct{}, id uuid.UUID) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := m[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m[id] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, ch chan struct{}) error {
	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("lock wait exceeded %s: %w", s.lockTimeout, domain.ErrConcurrentModification)
	case <-ctx.Done():
		return fmt.Errorf("lock wait: %w: %w", domain.ErrConcurrentModification, ctx.Err())
	}
}

func cloneTxn(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.Entries != nil {
		cp.Entries = make([]domain.LedgerEntry, len(t.Entries))
		copy(cp.Entries, t.Entries)
	}
	if t.ReversalOf != nil {
		id := *t.ReversalOf
		cp.ReversalOf = &id
	}
	if t.ReversedBy != nil {
		id := *t.ReversedBy
		cp.ReversedBy = &id
	}
	if t.CommittedAt != nil {
		at := *t.CommittedAt
		cp.CommittedAt = &at
	}
	return &cp
}
