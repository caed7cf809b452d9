package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open prepares a connection pool without dialing. Use WaitReady before the
// first query.
func Open(databaseURL string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	return db, nil
}

// WaitReady pings db until the server answers or b gives up. notify is
// called before each wait and may be nil.
func WaitReady(ctx context.Context, db *sql.DB, b backoff.BackOff, notify backoff.Notify) (int, error) {
	attempts := 0
	ping := func() error {
		attempts++
		return db.PingContext(ctx)
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		return attempts, fmt.Errorf("WaitReady: %d attempts: %w", attempts, err)
	}
	return attempts, nil
}
