package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountTypeUser   AccountType = "user"
	AccountTypeSystem AccountType = "system"
)

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "active"
	AccountStatusFrozen AccountStatus = "frozen"
	AccountStatusClosed AccountStatus = "closed"
)

func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	default:
		return false
	}
}

type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Type      AccountType
	Balance   int64
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Policy decides which account states may take part in a posting.
type Policy struct {
	FrozenAcceptsCredit bool
}

func DefaultPolicy() Policy {
	return Policy{FrozenAcceptsCredit: true}
}

// CheckPosting reports why the account cannot take the given delta, or nil.
func (p Policy) CheckPosting(a *Account, delta int64) error {
	switch a.Status {
	case AccountStatusActive:
		return nil
	case AccountStatusFrozen:
		if delta > 0 && p.FrozenAcceptsCredit {
			return nil
		}
		return ErrAccountFrozen
	case AccountStatusClosed:
		return ErrAccountClosed
	default:
		return ErrAccountClosed
	}
}
