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


package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/suchitkumarchennuri/logiq/ai"
	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
)

const (
	defaultLimit          = 5
	defaultMaxLimit       = 50
	defaultMaxContextLogs = 10

	defaultEmbedTimeout      = 10 * time.Second
	defaultSearchTimeout     = 10 * time.Second
	defaultSynthesizeTimeout = 30 * time.Second

	// NoMatchAnswer is returned verbatim when retrieval finds nothing;
	// the generator is never invoked with an empty context.
	NoMatchAnswer = "No relevant logs were found to answer the question."
)

// Pipeline answers questions about ingested logs: it embeds the question,
// retrieves the nearest matching records, and synthesizes an answer from
// them. Synthesis degrades to a deterministic fallback whenever the
// generator is absent, failing, or slow; retrieval failures are the only
// errors a caller sees.
type Pipeline struct {
	store    storage.LogStore
	provider ai.Provider
	logger   *slog.Logger

	defaultLimit   int
	maxLimit       int
	maxContextLogs int

	embedTimeout      time.Duration
	searchTimeout     time.Duration
	synthesizeTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

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

// WithLimits sets the default and maximum result counts. A requested limit
// of 0 becomes defaultLimit; anything above maxLimit is clamped down to it.
func WithLimits(defaultLimit, maxLimit int) Option {
	return func(p *Pipeline) error {
		if defaultLimit > 0 {
			p.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			p.maxLimit = maxLimit
		}
		return nil
	}
}

// WithMaxContextLogs caps how many retrieved records are handed to the
// generator regardless of the requested limit.
func WithMaxContextLogs(n int) Option {
	return func(p *Pipeline) error {
		if n > 0 {
			p.maxContextLogs = n
		}
		return nil
	}
}

// WithTimeouts sets the independent per-call timeouts for embedding the
// question, searching the store, and synthesizing the answer. Zero values
// keep the defaults.
func WithTimeouts(embed, search, synthesize time.Duration) Option {
	return func(p *Pipeline) error {
		if embed > 0 {
			p.embedTimeout = embed
		}
		if search > 0 {
			p.searchTimeout = search
		}
		if synthesize > 0 {
			p.synthesizeTimeout = synthesize
		}
		return nil
	}
}

// NewPipeline creates a new query pipeline.
func NewPipeline(store storage.LogStore, provider ai.Provider, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	p := &Pipeline{
		store:             store,
		provider:          provider,
		logger:            slog.Default(),
		defaultLimit:      defaultLimit,
		maxLimit:          defaultMaxLimit,
		maxContextLogs:    defaultMaxContextLogs,
		embedTimeout:      defaultEmbedTimeout,
		searchTimeout:     defaultSearchTimeout,
		synthesizeTimeout: defaultSynthesizeTimeout,
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Answer runs the full retrieval-augmented query. Embedding and search
// failures (including their timeouts) fail the request; synthesis failures
// never do, they degrade to the fallback answer. The response always carries
// the contexts actually used, the clamped requested limit, and the number of
// records the answer drew on.
func (p *Pipeline) Answer(ctx context.Context, question string, filter core.QueryFilter) (*core.QueryResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	limit := p.clampLimit(filter.Limit)

	vector, err := p.embedQuestion(ctx, question)
	if err != nil {
		p.logger.Error("error embedding question", "err", err)
		return nil, err
	}

	results, err := p.search(ctx, vector, filter, limit)
	if err != nil {
		p.logger.Error("error searching logs", "err", err)
		return nil, err
	}

	contexts := p.assembleContext(question, results)

	response := &core.QueryResponse{
		Contexts:   contexts,
		RequestedK: limit,
		UsedK:      len(contexts),
	}

	if len(contexts) == 0 {
		response.Answer = NoMatchAnswer
		return response, nil
	}

	response.Answer = p.synthesize(ctx, question, contexts)
	return response, nil
}

func (p *Pipeline) clampLimit(limit int) int {
	if limit <= 0 {
		return p.defaultLimit
	}
	if limit > p.maxLimit {
		return p.maxLimit
	}
	return limit
}

func (p *Pipeline) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()
	return p.provider.Embedder().EmbedText(ctx, question)
}

func (p *Pipeline) search(ctx context.Context, vector []float32, filter core.QueryFilter, limit int) ([]core.ScoredRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	defer cancel()
	return p.store.Search(ctx, vector, filter, limit)
}

// assembleContext caps the ranked results to the configured context size,
// then trims from the tail until question plus context fit the generator's
// context window. Without a generator there is no window to respect.
func (p *Pipeline) assembleContext(question string, results []core.ScoredRecord) []core.ScoredRecord {
	contexts := results
	if len(contexts) > p.maxContextLogs {
		contexts = contexts[:p.maxContextLogs]
	}

	if !p.provider.HasGenerator() || len(contexts) == 0 {
		return contexts
	}

	generator := p.provider.Generator()
	budget := generator.ContextWindow()
	used := generator.CountTokens(question)
	fit := 0
	for _, scored := range contexts {
		cost := generator.CountTokens(scored.Record.Message)
		if used+cost > budget {
			break
		}
		used += cost
		fit++
	}

	if fit < len(contexts) {
		p.logger.Debug("context trimmed to token budget",
			"kept", fit, "dropped", len(contexts)-fit, "window", budget)
	}
	return contexts[:fit]
}

// synthesize asks the generator for an answer, falling back to the raw
// context when no generator is configured or generation fails for any
// reason, timeouts included.
func (p *Pipeline) synthesize(ctx context.Context, question string, contexts []core.ScoredRecord) string {
	if !p.provider.HasGenerator() {
		return fallbackAnswer(contexts)
	}

	ctx, cancel := context.WithTimeout(ctx, p.synthesizeTimeout)
	defer cancel()

	records := make([]*core.LogRecord, len(contexts))
	for i, scored := range contexts {
		records[i] = scored.Record
	}

	answer, err := p.provider.Generator().Generate(ctx, question, records)
	if err != nil {
		p.logger.Warn("answer synthesis failed, using fallback", "err", err)
		return fallbackAnswer(contexts)
	}
	return answer
}

// fallbackAnswer joins the context messages with newlines in rank order.
// It is fully deterministic for a given retrieval result.
func fallbackAnswer(contexts []core.ScoredRecord) string {
	messages := make([]string, len(contexts))
	for i, scored := range contexts {
		messages[i] = scored.Record.Message
	}
	return strings.Join(messages, "\n")
}
