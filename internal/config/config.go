package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	TokenSymbol    string `env:"TOKEN_SYMBOL" envDefault:"PAY"`
	TokenPrecision int32  `env:"TOKEN_PRECISION" envDefault:"2"`
	TxLimit        int64  `env:"TX_LIMIT" envDefault:"10000000"`

	LockTimeout         time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"2s"`
	FrozenAcceptsCredit bool          `env:"LEDGER_FROZEN_ACCEPTS_CREDITS" envDefault:"true"`

	PaymentMaxRetries    uint64        `env:"PAYMENT_MAX_RETRIES" envDefault:"4"`
	PaymentSubmitTimeout time.Duration `env:"PAYMENT_SUBMIT_TIMEOUT" envDefault:"5s"`

	FXSpreadPct float64 `env:"FX_SPREAD_PCT" envDefault:"0.005"`

	NATSURL            string        `env:"NATS_URL"`
	AuditRelayInterval time.Duration `env:"AUDIT_RELAY_INTERVAL" envDefault:"2s"`
	AuditMaxAttempts   int           `env:"AUDIT_MAX_ATTEMPTS" envDefault:"5"`

	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`
	DBConnectRetries  uint64        `env:"DB_CONNECT_RETRIES" envDefault:"30"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.TokenPrecision < 0 || cfg.TokenPrecision > 18 {
		return nil, fmt.Errorf("config.Load: TOKEN_PRECISION must be between 0 and 18, got %d", cfg.TokenPrecision)
	}
	if cfg.AuditMaxAttempts < 1 {
		return nil, fmt.Errorf("config.Load: AUDIT_MAX_ATTEMPTS must be at least 1, got %d", cfg.AuditMaxAttempts)
	}
	return &cfg, nil
}
