// Package audit fans ledger outcomes out to observers: structured logs,
// metrics and an external event stream.
package audit

import (
	"context"
	"log/slog"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

type Sink interface {
	Emit(ctx context.Context, e domain.Event)
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, e domain.Event) {
	attrs := []any{
		"transaction_id", e.TransactionID,
		"kind", e.Kind,
		"outcome", e.Outcome,
		"sequence", e.Sequence,
	}
	if e.ReasonCode != domain.ReasonNone {
		attrs = append(attrs, "reason", e.ReasonCode)
	}
	if e.SupplyDelta != 0 {
		attrs = append(attrs, "supply_delta", e.SupplyDelta)
	}
	s.logger.InfoContext(ctx, "ledger event", attrs...)
}

// MultiSink emits to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e domain.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}
