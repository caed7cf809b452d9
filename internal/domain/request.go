package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Posting is one requested balance change before it is applied.
type Posting struct {
	AccountID uuid.UUID
	Delta     int64
}

// Request is a tagged request variant. Each variant carries only the fields
// valid for it and must pass Validate before reaching the ledger.
type Request interface {
	Kind() TransactionKind
	Key() string
	Postings() []Posting
	Validate() error
}

type TransferRequest struct {
	InitiatorID    uuid.UUID
	From           uuid.UUID
	To             uuid.UUID
	Amount         int64
	IdempotencyKey string
	Memo           string
}

func (r TransferRequest) Kind() TransactionKind { return KindTransfer }
func (r TransferRequest) Key() string           { return r.IdempotencyKey }

func (r TransferRequest) Postings() []Posting {
	return []Posting{
		{AccountID: r.From, Delta: -r.Amount},
		{AccountID: r.To, Delta: r.Amount},
	}
}

func (r TransferRequest) Validate() error {
	if r.IdempotencyKey == "" {
		return fmt.Errorf("TransferRequest: %w", ErrMissingIdempotencyKey)
	}
	if r.From == uuid.Nil || r.To == uuid.Nil {
		return fmt.Errorf("TransferRequest: account ids required: %w", ErrInvalidRequest)
	}
	if r.From == r.To {
		return fmt.Errorf("TransferRequest: %w", ErrSelfTransfer)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("TransferRequest: %w", ErrInvalidAmount)
	}
	return nil
}

type MintRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	Reason         string
	IdempotencyKey string
}

func (r MintRequest) Kind() TransactionKind { return KindMint }
func (r MintRequest) Key() string           { return r.IdempotencyKey }

func (r MintRequest) Postings() []Posting {
	return []Posting{{AccountID: r.AccountID, Delta: r.Amount}}
}

func (r MintRequest) Validate() error {
	return validateSupplyRequest("MintRequest", r.AccountID, r.Amount, r.Reason, r.IdempotencyKey)
}

type BurnRequest struct {
	AccountID      uuid.UUID
	Amount         int64
	Reason         string
	IdempotencyKey string
}

func (r BurnRequest) Kind() TransactionKind { return KindBurn }
func (r BurnRequest) Key() string           { return r.IdempotencyKey }

func (r BurnRequest) Postings() []Posting {
	return []Posting{{AccountID: r.AccountID, Delta: -r.Amount}}
}

func (r BurnRequest) Validate() error {
	return validateSupplyRequest("BurnRequest", r.AccountID, r.Amount, r.Reason, r.IdempotencyKey)
}

func validateSupplyRequest(op string, accountID uuid.UUID, amount int64, reason, key string) error {
	if key == "" {
		return fmt.Errorf("%s: %w", op, ErrMissingIdempotencyKey)
	}
	if accountID == uuid.Nil {
		return fmt.Errorf("%s: account id required: %w", op, ErrInvalidRequest)
	}
	if amount <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}
	if reason == "" {
		return fmt.Errorf("%s: reason required: %w", op, ErrInvalidRequest)
	}
	return nil
}
