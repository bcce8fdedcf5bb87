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


package logiq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/suchitkumarchennuri/logiq/ai"
	"github.com/suchitkumarchennuri/logiq/ai/openai"
	"github.com/suchitkumarchennuri/logiq/config"
	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/ingest"
	"github.com/suchitkumarchennuri/logiq/rag"
	"github.com/suchitkumarchennuri/logiq/storage"
	"github.com/suchitkumarchennuri/logiq/storage/badger"
	"github.com/suchitkumarchennuri/logiq/storage/sqlite"
)

// Database wires a storage backend, a lazily initialized AI provider, and
// the ingestion and query pipelines into one handle.
type Database struct {
	cfg      *config.Config
	backend  *badger.Backend // nil for the sqlite backend
	store    storage.LogStore
	provider ai.Provider
	ingester *ingest.Pipeline
	querier  *rag.Pipeline
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.Provider
	logger   *slog.Logger
}

// WithProvider substitutes the AI provider, bypassing the lazily
// initialized OpenAI-compatible one built from configuration. Used by tests
// and by embedders hosting their own models.
func WithProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open builds a Database from configuration: the selected storage backend,
// a lazy AI provider, and both pipelines. Model processes are not contacted
// until the first embedding or generation call.
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	db := &Database{cfg: cfg, logger: logger}

	switch cfg.DBBackend {
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		db.store = store
	case config.BackendBadger:
		backend, err := badger.OpenBackend(cfg.DBPath, false)
		if err != nil {
			return nil, err
		}
		store, err := badger.NewStore(backend)
		if err != nil {
			backend.Close()
			return nil, err
		}
		db.backend = backend
		db.store = store
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.DBBackend)
	}

	provider := options.provider
	if provider == nil {
		lazy, err := ai.NewLazyProvider(aiConfig(cfg), func(c *ai.Config) (ai.Provider, error) {
			return openai.NewProvider(c)
		})
		if err != nil {
			db.closeStore()
			return nil, err
		}
		provider = lazy
	}
	db.provider = provider

	ingestOpts := []ingest.Option{
		ingest.WithLogger(logger),
		ingest.WithRetry(cfg.RetryAttempts, cfg.RetryBaseDelay),
	}
	if cfg.PoolSize > 0 {
		ingestOpts = append(ingestOpts, ingest.WithPoolSize(cfg.PoolSize))
	}
	ingester, err := ingest.NewPipeline(db.store, provider, ingestOpts...)
	if err != nil {
		db.closeStore()
		return nil, err
	}
	db.ingester = ingester

	querier, err := rag.NewPipeline(db.store, provider,
		rag.WithLogger(logger),
		rag.WithLimits(cfg.DefaultLimit, cfg.MaxLimit),
		rag.WithMaxContextLogs(cfg.MaxContextLogs),
		rag.WithTimeouts(cfg.EmbedTimeout, cfg.SearchTimeout, cfg.SynthesizeTimeout))
	if err != nil {
		ingester.Release()
		db.closeStore()
		return nil, err
	}
	db.querier = querier

	return db, nil
}

// aiConfig maps process configuration onto the AI provider configuration.
func aiConfig(cfg *config.Config) *ai.Config {
	generatorHost := cfg.GeneratorHost
	if generatorHost == "" {
		generatorHost = cfg.EmbeddingHost
	}

	return ai.NewConfig(
		ai.WithEmbeddingHost(cfg.EmbeddingHost),
		ai.WithGeneratorHost(generatorHost),
		ai.WithEmbeddingModel(cfg.EmbeddingModel),
		ai.WithGeneratorModel(cfg.GeneratorModel),
		ai.WithDimensions(cfg.Dimensions),
		ai.WithContextWindow(cfg.ContextWindow),
		ai.WithTemperature(cfg.Temperature),
		ai.WithTopP(cfg.TopP),
		ai.WithRateLimit(cfg.RateLimit),
	)
}

// Ingest accepts a log payload for asynchronous ingestion. It returns as
// soon as the payload is queued; processing failures are retried and
// eventually dead-lettered, never surfaced here.
func (db *Database) Ingest(ctx context.Context, payload core.LogPayload) error {
	return db.ingester.Enqueue(ctx, payload)
}

// IngestSync processes a payload synchronously and returns the stored
// record's ID. Useful for CLI batch loads and external queue consumers.
func (db *Database) IngestSync(ctx context.Context, payload core.LogPayload) (core.ID, error) {
	return db.ingester.Process(ctx, payload)
}

// Answer runs a retrieval-augmented query over the ingested logs.
func (db *Database) Answer(ctx context.Context, question string, filter core.QueryFilter) (*core.QueryResponse, error) {
	return db.querier.Answer(ctx, question, filter)
}

// Store exposes the underlying log store.
func (db *Database) Store() storage.LogStore {
	return db.store
}

// Ingester exposes the ingestion pipeline, e.g. to attach external queue
// consumers to Process directly.
func (db *Database) Ingester() *ingest.Pipeline {
	return db.ingester
}

// Close releases the pipelines, the AI provider, and the storage backend.
func (db *Database) Close() error {
	db.ingester.Release()

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	return db.closeStore()
}

func (db *Database) closeStore() error {
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing log store", "err", err)
		return err
	}
	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}
