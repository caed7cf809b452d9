package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/josh-kwaku/unified-pay/internal/audit"
	"github.com/josh-kwaku/unified-pay/internal/config"
	"github.com/josh-kwaku/unified-pay/internal/ledger"
	"github.com/josh-kwaku/unified-pay/internal/logging"
	"github.com/josh-kwaku/unified-pay/internal/repository"
	"github.com/josh-kwaku/unified-pay/internal/repository/memory"
	"github.com/josh-kwaku/unified-pay/migrations"
)

const serviceName = "unified-pay"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pg, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer closeStore()

	var sinks []audit.Sink
	if cfg.NATSURL != "" {
		nc, js, err := audit.ConnectJetStream(ctx, cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer nc.Drain()

		if err := audit.EnsureStream(ctx, js); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		publisher := audit.NewNATSPublisher(js, logger)

		if pg != nil {
			relay := audit.NewRelay(pg, publisher, logger, cfg.AuditRelayInterval, cfg.AuditMaxAttempts)
			go relay.Start(ctx)
		} else {
			sinks = append(sinks, publisher)
		}
	} else if pg != nil {
		logger.Warn("NATS_URL not set, audit outbox records will stay pending")
	}

	var db readinessChecker
	if pg != nil {
		db = pg
	}
	a := newApp(cfg, logger, store, db, sinks...)

	done := make(chan struct{})
	defer close(done)
	a.limiter.StartEviction(done, time.Minute, 10*time.Minute)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr, "token", cfg.TokenSymbol, "storage", storageKind(pg))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("run: serve: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("run: shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openStore uses Postgres when DATABASE_URL is set and the in-memory store
// otherwise. The second return value is nil for the in-memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, *repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using the in-memory ledger store")
		return memory.New(cfg.LockTimeout), nil, func() {}, nil
	}

	db, err := connectDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("openStore: %w", err)
	}

	if err := repository.Migrate(ctx, db, migrations.FS); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("openStore: %w", err)
	}

	pg := repository.NewStore(db, cfg.LockTimeout)
	return pg, pg, func() { db.Close() }, nil
}

func connectDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := repository.Open(cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	notify := func(err error, wait time.Duration) {
		logger.Info("waiting for database", "retry_in", wait, "error", err)
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), cfg.DBConnectRetries)
	attempts, err := repository.WaitReady(ctx, db, b, notify)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connectDB: %w", err)
	}
	logger.Info("database ready", "attempts", attempts)
	return db, nil
}

func storageKind(pg *repository.Store) string {
	if pg == nil {
		return "memory"
	}
	return "postgres"
}
