package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusDispatched OutboxStatus = "dispatched"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxRecord is an audit event persisted in the same commit as the
// transaction it describes, awaiting relay to an external sink.
type OutboxRecord struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Payload       json.RawMessage
	Status        OutboxStatus
	Attempts      int
	LastAttempt   *time.Time
	CreatedAt     time.Time
}

func (r OutboxRecord) Decode(e *Event) error {
	return json.Unmarshal(r.Payload, e)
}
