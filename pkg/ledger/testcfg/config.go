package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for ledger client acceptance tests
type Config struct {
	Limit       uint64        `env:"LEDGER_TEST_LIMIT" envDefault:"5"`
	AfterID     int64         `env:"LEDGER_TEST_AFTER_ID" envDefault:"0"`
	HTTPTimeout time.Duration `env:"LEDGER_TEST_HTTP_TIMEOUT" envDefault:"30s"`
	BaseURL     string        `env:"LEDGER_TEST_BASE_URL" envDefault:"http://localhost:8545"`
}

// parseConfig wraps env.Parse to return (Config, error) for use with env.Must
func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}
