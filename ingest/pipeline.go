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


package ingest

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/suchitkumarchennuri/logiq/ai"
	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 200 * time.Millisecond
)

// DeadLetterFunc receives payloads that failed permanently or exhausted
// their retries, together with the final error. It is called from worker
// goroutines and must be safe for concurrent use.
type DeadLetterFunc func(payload core.LogPayload, err error)

// Pipeline ingests log payloads asynchronously: validate, normalize, embed,
// and atomically persist. Delivery is at least once; a payload retried after
// a partial failure is stored again under a fresh ID rather than dropped.
type Pipeline struct {
	store      storage.LogStore
	provider   ai.Provider
	pool       *ants.Pool
	deadLetter DeadLetterFunc
	logger     *slog.Logger

	maxAttempts int
	baseDelay   time.Duration

	bootMu   sync.Mutex
	bootDone bool
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithDeadLetter sets the callback for payloads that cannot be ingested.
// Without one, dead-lettered payloads are only logged.
func WithDeadLetter(fn DeadLetterFunc) Option {
	return func(p *Pipeline) error {
		p.deadLetter = fn
		return nil
	}
}

// WithRetry sets the retry budget for transient failures.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.LogStore, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		provider:    provider,
		pool:        pool,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Enqueue accepts a payload for asynchronous ingestion and returns
// immediately. The only errors it returns are pool submission failures;
// processing failures are retried and ultimately dead-lettered.
func (p *Pipeline) Enqueue(ctx context.Context, payload core.LogPayload) error {
	return p.pool.Submit(func() {
		fingerprint := payload.Fingerprint()

		err := RetryWithBackoff(context.Background(), func() error {
			_, err := p.Process(context.Background(), payload)
			if permanent(err) {
				return Permanent(err)
			}
			return err
		}, p.maxAttempts, p.baseDelay)
		if err == nil {
			return
		}

		p.logger.Error("payload dead-lettered",
			"fingerprint", fingerprint,
			"service", payload.Service,
			"err", err)
		if p.deadLetter != nil {
			p.deadLetter(payload, err)
		}
	})
}

// Process runs a single ingestion attempt synchronously and returns the ID
// of the stored record. It is safe to call repeatedly for the same payload;
// each successful call stores a new record. External queue consumers that
// manage their own retries call this directly, classifying errors with
// IsPermanent.
func (p *Pipeline) Process(ctx context.Context, payload core.LogPayload) (core.ID, error) {
	if err := p.ensureBootstrap(ctx); err != nil {
		return 0, err
	}

	if err := core.ValidatePayload(&payload); err != nil {
		return 0, err
	}
	record := normalize(payload)

	vector, err := p.provider.Embedder().EmbedText(ctx, record.Message)
	if err != nil {
		return 0, err
	}
	record.Vector = vector

	added, err := p.store.Add(ctx, record)
	if err != nil {
		return 0, err
	}

	p.logger.Debug("payload ingested",
		"id", added[0].Id,
		"fingerprint", payload.Fingerprint(),
		"service", record.Service,
		"level", record.Level)
	return added[0].Id, nil
}

// ensureBootstrap bootstraps the store once per pipeline, retrying so a
// store that is briefly unavailable at process start recovers. A failed
// bootstrap is attempted again on the next payload rather than cached.
func (p *Pipeline) ensureBootstrap(ctx context.Context) error {
	p.bootMu.Lock()
	defer p.bootMu.Unlock()

	if p.bootDone {
		return nil
	}

	err := RetryWithBackoff(ctx, func() error {
		err := p.store.Bootstrap(ctx, p.provider.Dimensions())
		if errors.Is(err, storage.ErrDimensionMismatch) {
			return Permanent(err)
		}
		return err
	}, p.maxAttempts, p.baseDelay)
	if err != nil {
		return err
	}

	p.bootDone = true
	return nil
}

// normalize converts a payload into an unpersisted record: whitespace is
// trimmed, the level is upper-cased, and a missing timestamp defaults to
// arrival time.
func normalize(payload core.LogPayload) *core.LogRecord {
	timestamp := payload.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	return &core.LogRecord{
		Timestamp: timestamp,
		Service:   strings.TrimSpace(payload.Service),
		Level:     strings.ToUpper(strings.TrimSpace(payload.Level)),
		Message:   payload.Message,
		Metadata:  payload.Metadata,
	}
}

// permanent reports whether err cannot be fixed by retrying. Validation and
// dimension errors dead-letter immediately; everything else is assumed
// transient.
func permanent(err error) bool {
	return errors.Is(err, core.ErrInvalidPayload) ||
		errors.Is(err, storage.ErrDimensionMismatch) ||
		errors.Is(err, storage.ErrMissingEmbedding)
}

// IsPermanent reports whether err should be dead-lettered instead of
// retried. Exported for external queue consumers driving Process.
func IsPermanent(err error) bool {
	return permanent(err)
}

// Release releases the worker pool. Queued payloads may be dropped; callers
// wanting a clean drain should stop enqueueing and wait before releasing.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
