package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendLocal  = "local"
	BackendDocker = "docker"

	jobBudgetMargin = 5 * time.Second
)

type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Engine  EngineConfig  `envPrefix:"ENGINE_"`
	Limiter LimiterConfig `envPrefix:"RATE_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Port         string `env:"PORT" envDefault:"2000"`
	ReadTimeout  int    `env:"READ_TIMEOUT" envDefault:"15"`   // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT" envDefault:"120"` // seconds
	IdleTimeout  int    `env:"IDLE_TIMEOUT" envDefault:"60"`   // seconds
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"5242880"`
}

type EngineConfig struct {
	ScratchRoot      string            `env:"SCRATCH_ROOT"`
	CompileTimeoutMs int               `env:"COMPILE_TIMEOUT_MS" envDefault:"10000"`
	RunTimeoutMs     int               `env:"RUN_TIMEOUT_MS" envDefault:"3000"`
	MaxInputs        int               `env:"MAX_INPUTS" envDefault:"32"`
	MaxOutputBytes   int               `env:"MAX_OUTPUT_BYTES" envDefault:"10485760"`
	Shell            string            `env:"SHELL_PATH" envDefault:"/bin/sh"`
	Backend          string            `env:"BACKEND" envDefault:"local"`
	Workers          int               `env:"WORKERS" envDefault:"5"`
	QueueCapacity    int               `env:"QUEUE_CAPACITY" envDefault:"100"`
	DockerMemoryMb   int               `env:"DOCKER_MEMORY_MB" envDefault:"512"`
	Images           map[string]string `env:"IMAGES"` // e.g. "python:python:3.12-slim,cpp:gcc:14"
}

type LimiterConfig struct {
	GlobalRPS      float64 `env:"GLOBAL_RPS" envDefault:"100"`
	PerClientRPS   float64 `env:"PER_CLIENT_RPS" envDefault:"10"`
	PerClientBurst int     `env:"PER_CLIENT_BURST" envDefault:"20"`
	MaxConcurrent  int     `env:"MAX_CONCURRENT" envDefault:"50"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"` // console, json
}

// JobBudget is the longest a single job may ask for: the response must be
// written before the server's write timeout.
func (c *Config) JobBudget() time.Duration {
	budget := time.Duration(c.Server.WriteTimeout)*time.Second - jobBudgetMargin
	if budget <= 0 {
		return time.Duration(c.Server.WriteTimeout) * time.Second
	}
	return budget
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Engine.ScratchRoot == "" {
		cfg.Engine.ScratchRoot = filepath.Join(os.TempDir(), "codejudge")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Engine.CompileTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_COMPILE_TIMEOUT_MS must be positive, got %d", c.Engine.CompileTimeoutMs))
	}
	if c.Engine.RunTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_RUN_TIMEOUT_MS must be positive, got %d", c.Engine.RunTimeoutMs))
	}
	if c.Engine.MaxInputs <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_MAX_INPUTS must be positive, got %d", c.Engine.MaxInputs))
	}
	if c.Server.WriteTimeout*1000 <= c.Engine.CompileTimeoutMs+c.Engine.RunTimeoutMs {
		errs = append(errs, fmt.Errorf("SERVER_WRITE_TIMEOUT (%ds) leaves no room for a default job", c.Server.WriteTimeout))
	}
	if c.Engine.MaxOutputBytes <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_MAX_OUTPUT_BYTES must be positive, got %d", c.Engine.MaxOutputBytes))
	}
	if c.Engine.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_WORKERS must be positive, got %d", c.Engine.Workers))
	}
	if c.Engine.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("ENGINE_QUEUE_CAPACITY must be positive, got %d", c.Engine.QueueCapacity))
	}
	if c.Engine.Backend != BackendLocal && c.Engine.Backend != BackendDocker {
		errs = append(errs, fmt.Errorf("ENGINE_BACKEND must be %q or %q, got %q", BackendLocal, BackendDocker, c.Engine.Backend))
	}
	return errors.Join(errs...)
}
