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


package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/suchitkumarchennuri/logiq/core"
)

// InitFunc constructs the underlying provider on first use.
type InitFunc func(cfg *Config) (Provider, error)

// LazyProvider is a Provider whose underlying implementation is initialized
// at most once per process, on first use. Concurrent first callers block on
// the in-flight initialization and share its result; a failed initialization
// is cached and reported to every subsequent caller until the process
// restarts.
//
// Capability questions (HasGenerator, Dimensions, ContextWindow) are answered
// from configuration without triggering initialization, so the query pipeline
// can check the synthesis capability before any model is loaded.
type LazyProvider struct {
	cfg  *Config
	init InitFunc

	once        sync.Once
	provider    Provider
	err         error
	initialized atomic.Bool

	logger *slog.Logger
}

var _ Provider = (*LazyProvider)(nil)

// NewLazyProvider creates a lazy provider around the given initializer.
// The configuration is validated eagerly; initialization itself is deferred
// until the first embedding or generation call.
func NewLazyProvider(cfg *Config, init InitFunc) (*LazyProvider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if init == nil {
		return nil, ErrInitFuncRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &LazyProvider{
		cfg:    cfg,
		init:   init,
		logger: slog.Default().With("component", "lazy-provider"),
	}, nil
}

// get performs the exclusive one-time initialization.
func (p *LazyProvider) get() (Provider, error) {
	p.once.Do(func() {
		p.logger.Debug("initializing AI provider",
			"embeddingModel", p.cfg.EmbeddingModel,
			"generatorModel", p.cfg.GeneratorModel)

		provider, err := p.init(p.cfg)
		if err != nil {
			p.err = fmt.Errorf("%w: %w", ErrProviderInit, err)
			p.logger.Error("AI provider initialization failed", "err", p.err)
			return
		}
		p.provider = provider
		p.initialized.Store(true)
	})
	return p.provider, p.err
}

// Embedder returns the lazily initialized embedding service.
func (p *LazyProvider) Embedder() Embedder {
	return &lazyEmbedder{parent: p}
}

// Generator returns the lazily initialized synthesis service, or nil when no
// generation model is configured.
func (p *LazyProvider) Generator() Generator {
	if !p.cfg.HasGenerator() {
		return nil
	}
	return &lazyGenerator{parent: p}
}

// HasGenerator reports whether answer synthesis is configured.
func (p *LazyProvider) HasGenerator() bool {
	return p.cfg.HasGenerator()
}

// Dimensions returns the configured embedding vector dimension.
func (p *LazyProvider) Dimensions() int {
	return p.cfg.Dimensions
}

// Close releases the underlying provider if it was ever initialized.
func (p *LazyProvider) Close() error {
	if !p.initialized.Load() {
		return nil
	}
	return p.provider.Close()
}

// lazyEmbedder defers provider initialization to the first embedding call.
type lazyEmbedder struct {
	parent *LazyProvider
}

var _ Embedder = (*lazyEmbedder)(nil)

func (e *lazyEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	provider, err := e.parent.get()
	if err != nil {
		return nil, err
	}
	return provider.Embedder().EmbedText(ctx, text)
}

func (e *lazyEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	provider, err := e.parent.get()
	if err != nil {
		return nil, err
	}
	return provider.Embedder().EmbedTexts(ctx, texts)
}

// lazyGenerator defers provider initialization to the first generation call.
type lazyGenerator struct {
	parent *LazyProvider
}

var _ Generator = (*lazyGenerator)(nil)

func (g *lazyGenerator) Generate(ctx context.Context, question string, records []*core.LogRecord) (string, error) {
	provider, err := g.parent.get()
	if err != nil {
		return "", err
	}
	generator := provider.Generator()
	if generator == nil {
		return "", ErrGeneratorNotConfigured
	}
	return generator.Generate(ctx, question, records)
}

// ContextWindow is answered from configuration so callers can budget context
// before the model is loaded.
func (g *lazyGenerator) ContextWindow() int {
	return g.parent.cfg.ContextWindow
}

func (g *lazyGenerator) CountTokens(text string) int {
	provider, err := g.parent.get()
	if err != nil || provider.Generator() == nil {
		// Rough fallback estimate: ~4 characters per token.
		return len(text) / 4
	}
	return provider.Generator().CountTokens(text)
}
