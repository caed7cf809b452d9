package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

type outboxDispatcher interface {
	DispatchOutbox(ctx context.Context, limit, maxAttempts int, publish func(context.Context, domain.OutboxRecord) error) (int, error)
}

type recordPublisher interface {
	Publish(ctx context.Context, rec domain.OutboxRecord) error
}

// Relay drains the audit outbox into a publisher on a fixed interval. A
// record is marked failed after maxAttempts unsuccessful publishes.
type Relay struct {
	outbox      outboxDispatcher
	publisher   recordPublisher
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(outbox outboxDispatcher, publisher recordPublisher, logger *slog.Logger, interval time.Duration, maxAttempts int) *Relay {
	return &Relay{
		outbox:      outbox,
		publisher:   publisher,
		logger:      logger,
		interval:    interval,
		batchSize:   50,
		maxAttempts: maxAttempts,
	}
}

func (r *Relay) Start(ctx context.Context) {
	r.logger.Info("audit relay started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("audit relay stopped")
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Relay) poll(ctx context.Context) int {
	n, err := r.outbox.DispatchOutbox(ctx, r.batchSize, r.maxAttempts, func(ctx context.Context, rec domain.OutboxRecord) error {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			r.logger.Warn("failed to relay audit record",
				"outbox_id", rec.ID,
				"transaction_id", rec.TransactionID,
				"attempt", rec.Attempts+1,
				"error", err,
			)
			return err
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to dispatch audit outbox", "error", err)
		return 0
	}
	if n > 0 {
		r.logger.Debug("audit records relayed", "count", n)
	}
	return n
}
