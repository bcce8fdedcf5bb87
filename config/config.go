// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by LOGIQ_DB_BACKEND.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

var (
	// ErrInvalidBackend indicates an unrecognized LOGIQ_DB_BACKEND value.
	ErrInvalidBackend = errors.New("invalid database backend")

	// ErrInvalidValue indicates an environment variable that failed to parse.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Config holds the process-wide configuration. Values are loaded once at
// startup and fixed for the process lifetime.
type Config struct {
	// Storage.
	DBBackend string // badger or sqlite
	DBPath    string

	// Embedding endpoint.
	EmbeddingHost  string
	EmbeddingModel string
	Dimensions     int

	// Generation endpoint. An empty model means fallback-only mode.
	GeneratorHost  string
	GeneratorModel string
	ContextWindow  int
	Temperature    float64
	TopP           float64
	RateLimit      float64 // embedder requests per second, 0 = unlimited

	// Query pipeline.
	DefaultLimit      int
	MaxLimit          int
	MaxContextLogs    int
	EmbedTimeout      time.Duration
	SearchTimeout     time.Duration
	SynthesizeTimeout time.Duration

	// Ingestion pipeline.
	PoolSize       int
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// Default returns the configuration used when no environment overrides
// are present.
func Default() *Config {
	return &Config{
		DBBackend:         BackendBadger,
		DBPath:            "logiq.db",
		EmbeddingHost:     "http://localhost:11434/v1",
		EmbeddingModel:    "embeddinggemma",
		Dimensions:        384,
		ContextWindow:     4096,
		Temperature:       0.1,
		TopP:              0.9,
		DefaultLimit:      5,
		MaxLimit:          50,
		MaxContextLogs:    10,
		EmbedTimeout:      10 * time.Second,
		SearchTimeout:     10 * time.Second,
		SynthesizeTimeout: 30 * time.Second,
		RetryAttempts:     3,
		RetryBaseDelay:    200 * time.Millisecond,
	}
}

// FromEnv builds a Config from a .env file (if present) and LOGIQ_*
// environment variables, starting from defaults. Parse failures are fatal
// configuration errors.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	stringVar(&cfg.DBBackend, "LOGIQ_DB_BACKEND")
	stringVar(&cfg.DBPath, "LOGIQ_DB_PATH")
	stringVar(&cfg.EmbeddingHost, "LOGIQ_EMBEDDING_HOST")
	stringVar(&cfg.EmbeddingModel, "LOGIQ_EMBEDDING_MODEL")
	stringVar(&cfg.GeneratorHost, "LOGIQ_GENERATOR_HOST")
	stringVar(&cfg.GeneratorModel, "LOGIQ_GENERATOR_MODEL")

	if err := errors.Join(
		intVar(&cfg.Dimensions, "LOGIQ_EMBEDDING_DIMENSIONS"),
		intVar(&cfg.ContextWindow, "LOGIQ_CONTEXT_WINDOW"),
		floatVar(&cfg.Temperature, "LOGIQ_TEMPERATURE"),
		floatVar(&cfg.TopP, "LOGIQ_TOP_P"),
		floatVar(&cfg.RateLimit, "LOGIQ_RATE_LIMIT"),
		intVar(&cfg.DefaultLimit, "LOGIQ_DEFAULT_LIMIT"),
		intVar(&cfg.MaxLimit, "LOGIQ_MAX_LIMIT"),
		intVar(&cfg.MaxContextLogs, "LOGIQ_MAX_CONTEXT_LOGS"),
		durationVar(&cfg.EmbedTimeout, "LOGIQ_EMBED_TIMEOUT"),
		durationVar(&cfg.SearchTimeout, "LOGIQ_SEARCH_TIMEOUT"),
		durationVar(&cfg.SynthesizeTimeout, "LOGIQ_SYNTHESIZE_TIMEOUT"),
		intVar(&cfg.PoolSize, "LOGIQ_POOL_SIZE"),
		intVar(&cfg.RetryAttempts, "LOGIQ_RETRY_ATTEMPTS"),
		durationVar(&cfg.RetryBaseDelay, "LOGIQ_RETRY_BASE_DELAY"),
	); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariant constraints between fields.
func (c *Config) Validate() error {
	if c.DBBackend != BackendBadger && c.DBBackend != BackendSQLite {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.DBBackend)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: LOGIQ_DB_PATH must not be empty", ErrInvalidValue)
	}
	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: LOGIQ_EMBEDDING_HOST must not be empty", ErrInvalidValue)
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: LOGIQ_EMBEDDING_MODEL must not be empty", ErrInvalidValue)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: LOGIQ_EMBEDDING_DIMENSIONS must be positive", ErrInvalidValue)
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("%w: LOGIQ_CONTEXT_WINDOW must be positive", ErrInvalidValue)
	}
	if c.DefaultLimit <= 0 || c.MaxLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("%w: limits must be positive with default <= max", ErrInvalidValue)
	}
	if c.MaxContextLogs <= 0 {
		return fmt.Errorf("%w: LOGIQ_MAX_CONTEXT_LOGS must be positive", ErrInvalidValue)
	}
	if c.EmbedTimeout <= 0 || c.SearchTimeout <= 0 || c.SynthesizeTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidValue)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("%w: LOGIQ_RETRY_ATTEMPTS must be positive", ErrInvalidValue)
	}
	return nil
}

// HasGenerator reports whether a generation model is configured.
func (c *Config) HasGenerator() bool {
	return c.GeneratorModel != ""
}

func stringVar(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func intVar(dst *int, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
	*dst = parsed
	return nil
}

func floatVar(dst *float64, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
	*dst = parsed
	return nil
}

func durationVar(dst *time.Duration, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
	*dst = parsed
	return nil
}
