package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging      Logging
	Optimization struct {
		// WorkerCount is the evaluator fan-out of every run; 0 evaluates sequentially.
		WorkerCount       int `env:"OPT_WORKER_COUNT" envDefault:"4"`
		DefaultIterations int `env:"OPT_DEFAULT_ITERATIONS" envDefault:"100"`
		MaxIterations     int `env:"OPT_MAX_ITERATIONS" envDefault:"10000"`
		MaxParticles      int `env:"OPT_MAX_PARTICLES" envDefault:"1000"`
		MaxDimensions     int `env:"OPT_MAX_DIMENSIONS" envDefault:"100"`
		MaxConcurrentRuns int `env:"OPT_MAX_CONCURRENT_RUNS" envDefault:"8"`
	}
}

// Logging selects the level, line format and destination of the service
// logger. Empty fields fall back to info, json and stderr.
type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
	// Output is stdout, stderr or a file path opened for appending.
	Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the limits for consistency.
func (c *Config) Validate() error {
	o := c.Optimization
	switch {
	case o.WorkerCount < 0:
		return fmt.Errorf("OPT_WORKER_COUNT must not be negative, got %d", o.WorkerCount)
	case o.MaxIterations < 1:
		return fmt.Errorf("OPT_MAX_ITERATIONS must be positive, got %d", o.MaxIterations)
	case o.DefaultIterations < 1 || o.DefaultIterations > o.MaxIterations:
		return fmt.Errorf("OPT_DEFAULT_ITERATIONS must be in [1, %d], got %d", o.MaxIterations, o.DefaultIterations)
	case o.MaxParticles < 1:
		return fmt.Errorf("OPT_MAX_PARTICLES must be positive, got %d", o.MaxParticles)
	case o.MaxDimensions < 1:
		return fmt.Errorf("OPT_MAX_DIMENSIONS must be positive, got %d", o.MaxDimensions)
	case o.MaxConcurrentRuns < 1:
		return fmt.Errorf("OPT_MAX_CONCURRENT_RUNS must be positive, got %d", o.MaxConcurrentRuns)
	}
	return nil
}
