package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

const (
	StreamName    = "UNIFIED_PAY_LEDGER_EVENTS"
	subjectPrefix = "unifiedpay.ledger.events"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher writes ledger events to a JetStream stream under
// unifiedpay.ledger.events.<kind>.<outcome>. The outbox record id is used
// as the message id, so a record relayed twice is stored once.
type NATSPublisher struct {
	js     streamPublisher
	logger *slog.Logger
}

func NewNATSPublisher(js streamPublisher, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, logger: logger}
}

// ConnectJetStream dials NATS and makes sure the ledger event stream exists.
func ConnectJetStream(ctx context.Context, url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url, nats.Name("unified-pay"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("ConnectJetStream: connect: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ConnectJetStream: jetstream: %w", err)
	}
	if err := EnsureStream(ctx, js); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ConnectJetStream: %w", err)
	}
	return nc, js, nil
}

func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("EnsureStream: %w", err)
	}
	return nil
}

func Subject(e domain.Event) string {
	return strings.Join([]string{subjectPrefix, string(e.Kind), string(e.Outcome)}, ".")
}

// Publish relays one persisted outbox record.
func (p *NATSPublisher) Publish(ctx context.Context, rec domain.OutboxRecord) error {
	var e domain.Event
	if err := rec.Decode(&e); err != nil {
		return fmt.Errorf("Publish: decode %s: %w", rec.ID, err)
	}
	if _, err := p.js.Publish(ctx, Subject(e), rec.Payload, jetstream.WithMsgID(rec.ID.String())); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return nil
}

// Emit publishes directly, for stores without an outbox. Failures are
// logged and dropped.
func (p *NATSPublisher) Emit(ctx context.Context, e domain.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("marshal ledger event", "transaction_id", e.TransactionID, "error", err)
		return
	}
	msgID := e.TransactionID.String() + ":" + string(e.Outcome)
	if _, err := p.js.Publish(ctx, Subject(e), data, jetstream.WithMsgID(msgID)); err != nil {
		p.logger.Warn("publish ledger event failed", "transaction_id", e.TransactionID, "error", err)
	}
}
