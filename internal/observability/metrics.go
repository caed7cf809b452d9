package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/unified-pay/internal/domain"
)

// Metrics is the Prometheus view of the ledger. It is also an audit sink:
// every ledger event updates the transaction counters.
type Metrics struct {
	gatherer prometheus.Gatherer

	Transactions *prometheus.CounterVec
	Rejections   *prometheus.CounterVec
	LastSequence prometheus.Gauge
	Minted       prometheus.Counter
	Burned       prometheus.Counter
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	RateLimited  prometheus.Counter
}

// NewMetrics registers the ledger metrics with reg. Passing a fresh
// registry keeps tests independent of the global one.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transactions by kind and final outcome.",
		}, []string{"kind", "outcome"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "ledger",
			Name:      "rejections_total",
			Help:      "Rejected transactions by reason code.",
		}, []string{"reason"}),
		LastSequence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "unifiedpay",
			Subsystem: "ledger",
			Name:      "last_sequence",
			Help:      "Highest committed transaction sequence seen by this process.",
		}),
		Minted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "token",
			Name:      "minted_minor_units_total",
			Help:      "Minor units added to supply.",
		}),
		Burned: f.NewCounter(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "token",
			Name:      "burned_minor_units_total",
			Help:      "Minor units removed from supply.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unifiedpay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "unifiedpay",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the rate limiter.",
		}),
	}
}

func (m *Metrics) Emit(_ context.Context, e domain.Event) {
	m.Transactions.WithLabelValues(string(e.Kind), string(e.Outcome)).Inc()

	if e.Outcome == domain.StateRejected {
		m.Rejections.WithLabelValues(string(e.ReasonCode)).Inc()
		return
	}

	m.LastSequence.Set(float64(e.Sequence))
	switch {
	case e.SupplyDelta > 0:
		m.Minted.Add(float64(e.SupplyDelta))
	case e.SupplyDelta < 0:
		m.Burned.Add(float64(-e.SupplyDelta))
	}
}

func (m *Metrics) ObserveHTTP(method string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
