package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for scraper acceptance tests
// NOTE: All values are test-optimized (smaller, faster) compared to production
type Config struct {
	ChunkSize         uint64        `env:"SCRAPER_TEST_CHUNK_SIZE" envDefault:"2"`             // vs 1000 in production
	PollInterval      time.Duration `env:"SCRAPER_TEST_POLL_INTERVAL" envDefault:"100ms"`      // vs 10s in production
	GenesisRetryDelay time.Duration `env:"SCRAPER_TEST_GENESIS_RETRY_DELAY" envDefault:"10ms"` // vs 5s in production
	HttpClientTimeout time.Duration `env:"SCRAPER_TEST_HTTP_CLIENT_TIMEOUT" envDefault:"5s"`

	// Test execution timeouts
	ShutdownTimeout time.Duration `env:"SCRAPER_TEST_SHUTDOWN_TIMEOUT" envDefault:"5s"`
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
