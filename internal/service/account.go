package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/logging"
)

// AccountService is the account registry. Balances only move through the
// ledger engine; the registry owns identity and status.
type AccountService struct {
	store accountStore
	now   func() time.Time
}

func NewAccountService(store accountStore) *AccountService {
	return &AccountService{store: store, now: time.Now}
}

func (s *AccountService) Open(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	a, err := s.open(ctx, ownerID, domain.AccountTypeUser)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return a, nil
}

// OpenSystem opens an account for an internal holder such as the token
// reserve. System accounts are never owned by an end user.
func (s *AccountService) OpenSystem(ctx context.Context, ownerID uuid.UUID) (*domain.Account, error) {
	a, err := s.open(ctx, ownerID, domain.AccountTypeSystem)
	if err != nil {
		return nil, fmt.Errorf("OpenSystem: %w", err)
	}
	return a, nil
}

func (s *AccountService) open(ctx context.Context, ownerID uuid.UUID, accountType domain.AccountType) (*domain.Account, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("open: owner id required: %w", domain.ErrInvalidRequest)
	}

	now := s.now().UTC()
	account := &domain.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      accountType,
		Balance:   0,
		Status:    domain.AccountStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	logging.FromContext(ctx).Info("account opened",
		"account_id", account.ID,
		"owner_id", ownerID,
		"account_type", accountType,
	)
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Get: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return a, nil
}

func (s *AccountService) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error) {
	accounts, err := s.store.ListAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ListByOwner: %w", err)
	}
	return accounts, nil
}

// Freeze blocks debits from the account. Freezing a frozen account is a
// no-op.
func (s *AccountService) Freeze(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := s.transition(ctx, id, func(a *domain.Account) (domain.AccountStatus, error) {
		if a.Status == domain.AccountStatusClosed {
			return "", domain.ErrAccountClosed
		}
		return domain.AccountStatusFrozen, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Freeze: %w", err)
	}
	return a, nil
}

func (s *AccountService) Unfreeze(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := s.transition(ctx, id, func(a *domain.Account) (domain.AccountStatus, error) {
		if a.Status == domain.AccountStatusClosed {
			return "", domain.ErrAccountClosed
		}
		return domain.AccountStatusActive, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Unfreeze: %w", err)
	}
	return a, nil
}

// Close is terminal and only allowed on an empty account.
func (s *AccountService) Close(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, err := s.transition(ctx, id, func(a *domain.Account) (domain.AccountStatus, error) {
		if a.Status == domain.AccountStatusClosed {
			return "", domain.ErrInvalidStatus
		}
		if a.Balance != 0 {
			return "", domain.ErrNonZeroBalance
		}
		return domain.AccountStatusClosed, nil
	})
	if err != nil {
		return nil, fmt.Errorf("Close: %w", err)
	}
	return a, nil
}

// transition locks the account the same way the ledger does, so a status
// change never interleaves with a posting against it.
func (s *AccountService) transition(ctx context.Context, id uuid.UUID, next func(*domain.Account) (domain.AccountStatus, error)) (*domain.Account, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("transition: begin: %w", err)
	}
	defer tx.Rollback()

	locked, err := tx.LockAccounts(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	a := locked[id]

	status, err := next(a)
	if err != nil {
		return nil, fmt.Errorf("transition: %s: %w", id, err)
	}
	if status == a.Status {
		return a, nil
	}

	if err := tx.UpdateStatus(ctx, id, status, a.Version); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("transition: commit: %w", err)
	}

	logging.FromContext(ctx).Info("account status changed",
		"account_id", id,
		"from", a.Status,
		"to", status,
	)

	a.Status = status
	a.Version++
	a.UpdatedAt = s.now().UTC()
	return a, nil
}
