package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/josh-kwaku/unified-pay/api"
	"github.com/josh-kwaku/unified-pay/internal/audit"
	"github.com/josh-kwaku/unified-pay/internal/auth"
	"github.com/josh-kwaku/unified-pay/internal/config"
	"github.com/josh-kwaku/unified-pay/internal/domain"
	"github.com/josh-kwaku/unified-pay/internal/fx"
	"github.com/josh-kwaku/unified-pay/internal/handler"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/middleware"
	"github.com/josh-kwaku/unified-pay/internal/observability"
	"github.com/josh-kwaku/unified-pay/internal/service"
	"github.com/josh-kwaku/unified-pay/internal/service/payment"
	"github.com/josh-kwaku/unified-pay/internal/service/token"
)

type readinessChecker interface {
	Ping(ctx context.Context) error
}

type app struct {
	logger    *slog.Logger
	jwtSecret string
	authority *auth.Authority
	metrics   *observability.Metrics
	limiter   *middleware.RateLimiter

	health   *handler.HealthHandler
	accounts *handler.AccountHandler
	payments *handler.PaymentHandler
	admin    *handler.AdminHandler
	fx       *handler.FXHandler
}

// newApp wires the services over store. db is nil for the in-memory store.
// extra sinks receive every ledger event after the log and metrics sinks.
func newApp(cfg *config.Config, logger *slog.Logger, store ledger.Store, db readinessChecker, extra ...audit.Sink) *app {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	sink := append(audit.MultiSink{audit.NewLogSink(logger), metrics}, extra...)

	payToken := domain.Token{Symbol: cfg.TokenSymbol, Precision: cfg.TokenPrecision}
	policy := domain.Policy{FrozenAcceptsCredit: cfg.FrozenAcceptsCredit}

	opts := ledger.DefaultOptions()
	opts.Token = payToken
	opts.Policy = policy
	engine := ledger.NewEngine(store, sink, opts)

	registry := service.NewAccountService(store)

	payCfg := payment.DefaultConfig()
	payCfg.TxLimit = cfg.TxLimit
	payCfg.MaxRetries = cfg.PaymentMaxRetries
	payCfg.SubmitTimeout = cfg.PaymentSubmitTimeout
	payments := payment.NewService(engine, registry, payCfg)

	authority := auth.NewAuthority()
	tokens := token.NewManager(authority, engine, registry)
	rates := fx.NewRateService(payToken, cfg.FXSpreadPct)

	return &app{
		logger:    logger,
		jwtSecret: cfg.JWTSecret,
		authority: authority,
		metrics:   metrics,
		limiter:   middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, metrics.RateLimited),

		health:   handler.NewHealthHandler(db, version),
		accounts: handler.NewAccountHandler(registry, payments, payToken),
		payments: handler.NewPaymentHandler(payments, payToken),
		admin:    handler.NewAdminHandler(tokens, registry, payToken),
		fx:       handler.NewFXHandler(rates, payToken),
	}
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.health.Liveness)
	mux.HandleFunc("GET /health/ready", a.health.Readiness)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("GET /docs", handler.ServeDocs("unified-pay API", "/docs/openapi.yaml"))
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.Spec))

	authn := middleware.Auth(a.jwtSecret)
	admin := middleware.RequireAdmin(a.authority)

	user := func(h http.HandlerFunc) http.Handler {
		return authn(a.limiter.Handler(h))
	}
	userWrite := func(h http.HandlerFunc) http.Handler {
		return authn(a.limiter.Handler(middleware.Idempotency(h)))
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return authn(a.limiter.Handler(admin(h)))
	}
	adminWrite := func(h http.HandlerFunc) http.Handler {
		return authn(a.limiter.Handler(admin(middleware.Idempotency(h))))
	}

	mux.Handle("POST /api/v1/accounts", user(a.accounts.Open))
	mux.Handle("GET /api/v1/accounts", user(a.accounts.List))
	mux.Handle("GET /api/v1/accounts/{id}", user(a.accounts.Get))
	mux.Handle("GET /api/v1/accounts/{id}/entries", user(a.accounts.Entries))
	mux.Handle("POST /api/v1/transfers", userWrite(a.payments.Transfer))
	mux.Handle("GET /api/v1/transactions/{id}", user(a.payments.GetTransaction))
	mux.Handle("POST /api/v1/transactions/{id}/refund", userWrite(a.payments.Refund))
	mux.Handle("GET /api/v1/fx/quote", user(a.fx.Quote))

	mux.Handle("POST /api/v1/admin/mint", adminWrite(a.admin.Mint))
	mux.Handle("POST /api/v1/admin/burn", adminWrite(a.admin.Burn))
	mux.Handle("POST /api/v1/admin/transactions/{id}/reverse", adminWrite(a.admin.Reverse))
	mux.Handle("GET /api/v1/admin/supply", adminOnly(a.admin.Supply))
	mux.Handle("POST /api/v1/admin/accounts/system", adminOnly(a.admin.OpenSystem))
	mux.Handle("POST /api/v1/admin/accounts/{id}/freeze", adminOnly(a.admin.Freeze))
	mux.Handle("POST /api/v1/admin/accounts/{id}/unfreeze", adminOnly(a.admin.Unfreeze))
	mux.Handle("POST /api/v1/admin/accounts/{id}/close", adminOnly(a.admin.Close))

	var h http.Handler = mux
	h = middleware.Recovery(h)
	h = middleware.Logging(a.logger, a.metrics)(h)
	h = middleware.Tracing(h)
	return h
}
