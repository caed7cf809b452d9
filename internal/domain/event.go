package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is emitted once per committed, rejected or reversed transaction.
type Event struct {
	TransactionID uuid.UUID        `json:"transaction_id"`
	Kind          TransactionKind  `json:"kind"`
	Outcome       TransactionState `json:"outcome"`
	Sequence      int64            `json:"sequence"`
	ReasonCode    ReasonCode       `json:"reason_code,omitempty"`
	ReversalOf    *uuid.UUID       `json:"reversal_of,omitempty"`
	SupplyDelta   int64            `json:"supply_delta"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

func NewEvent(t *Transaction) Event {
	occurred := t.CreatedAt
	if t.CommittedAt != nil {
		occurred = *t.CommittedAt
	}
	return Event{
		TransactionID: t.ID,
		Kind:          t.Kind,
		Outcome:       t.State,
		Sequence:      t.Sequence,
		ReasonCode:    t.ReasonCode,
		ReversalOf:    t.ReversalOf,
		SupplyDelta:   t.SupplyDelta(),
		OccurredAt:    occurred,
	}
}
