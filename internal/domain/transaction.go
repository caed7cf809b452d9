package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindMint     TransactionKind = "mint"
	KindBurn     TransactionKind = "burn"
	KindReversal TransactionKind = "reversal"
)

type TransactionState string

const (
	StatePending   TransactionState = "pending"
	StateCommitted TransactionState = "committed"
	StateRejected  TransactionState = "rejected"
	StateReversed  TransactionState = "reversed"
)

type Transaction struct {
	ID              uuid.UUID
	IdempotencyKey  string
	RequestHash     string
	Kind            TransactionKind
	State           TransactionState
	SupplyAffecting bool
	ReasonCode      ReasonCode
	ReversalOf      *uuid.UUID
	ReversedBy      *uuid.UUID
	Memo            string
	Sequence        int64
	CreatedAt       time.Time
	CommittedAt     *time.Time
	Entries         []LedgerEntry
}

// Applied reports whether the transaction's entries reached the ledger.
func (t *Transaction) Applied() bool {
	return t.State == StateCommitted || t.State == StateReversed
}

// SupplyDelta is the net change to circulating supply, zero for transfers.
func (t *Transaction) SupplyDelta() int64 {
	var sum int64
	for _, e := range t.Entries {
		sum += e.Delta
	}
	return sum
}

type LedgerEntry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Delta         int64
	BalanceAfter  int64
	Sequence      int64
	CreatedAt     time.Time
}

func (e LedgerEntry) IsDebit() bool {
	return e.Delta < 0
}
