package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds environment-sourced settings that override or supplement
// slipway.yml. Credentials are deliberately absent: tokens are looked up
// at stage time via Token using the configured env var name, so they never
// appear in config structs or run records.
type Env struct {
	RedisAddr   string        `env:"SLIPWAY_REDIS_ADDR"`
	HTTPTimeout time.Duration `env:"SLIPWAY_HTTP_TIMEOUT" envDefault:"30s"`
	Debug       bool          `env:"SLIPWAY_DEBUG"`
}

// LoadEnv parses slipway's environment variables.
func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}

// LedgerAddr returns the effective ledger address: the SLIPWAY_REDIS_ADDR
// override when set, otherwise the configured address. Empty means the
// ledger is disabled.
func (e *Env) LedgerAddr(cfg *LedgerConfig) string {
	if e.RedisAddr != "" {
		return e.RedisAddr
	}
	if cfg != nil {
		return cfg.Addr
	}
	return ""
}

// Token reads a credential from the named environment variable.
// Returns an error naming the variable when it is unset or empty.
func Token(envVar string) (string, error) {
	token := os.Getenv(envVar)
	if token == "" {
		return "", fmt.Errorf("credential not found: environment variable %s is not set", envVar)
	}
	return token, nil
}
