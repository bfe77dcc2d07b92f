// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration, loaded from environment variables.
type Config struct {
	// Mode selects the runtime mode: "api" or "scheduler".
	Mode string `env:"SIEMCORE_MODE" envDefault:"api"`

	// Server
	Host string `env:"SIEMCORE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SIEMCORE_PORT" envDefault:"8080"`

	// External collaborators
	StoreURL      string `env:"STORE_URL" envDefault:"http://localhost:8123"`
	StoreDB       string `env:"STORE_DB" envDefault:"siem"`
	StoreUser     string `env:"STORE_USER"`
	StorePassword string `env:"STORE_PASSWORD"`
	CoordURL      string `env:"COORD_URL" envDefault:"redis://localhost:6379/0"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Scheduler
	TickIntervalMS   int `env:"TICK_INTERVAL_MS" envDefault:"1000"`
	SchedulerWorkers int `env:"SCHEDULER_WORKERS" envDefault:"0"` // 0 => NumCPU

	// Intake
	DefaultRateEPS  int `env:"DEFAULT_RATE_EPS" envDefault:"1000"`
	DefaultBurstEPS int `env:"DEFAULT_BURST_EPS" envDefault:"2000"`
	IngestWorkers   int `env:"INGEST_WORKERS" envDefault:"0"` // 0 => NumCPU
	IngestQueueLen  int `env:"INGEST_QUEUE_LEN" envDefault:"1024"`

	// Circuit breaker
	CircuitFailThreshold uint32 `env:"CIRCUIT_FAIL_THRESHOLD" envDefault:"5"`
	CircuitCooldownMS    int    `env:"CIRCUIT_COOLDOWN_MS" envDefault:"5000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	if cfg.SchedulerWorkers <= 0 {
		cfg.SchedulerWorkers = runtime.NumCPU()
	}
	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = runtime.NumCPU()
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
