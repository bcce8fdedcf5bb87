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


package openai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/suchitkumarchennuri/logiq/ai"
	"github.com/suchitkumarchennuri/logiq/core"
)

const maxAnswerTokens = 512

// ErrEmptyCompletion indicates the model returned no usable answer text.
// Callers treat this like any other generation failure and fall back.
var ErrEmptyCompletion = errors.New("model returned empty completion")

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client        llms.Model
	model         string
	contextWindow int
	temperature   float64
	topP          float64
	logger        *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.HasGenerator() {
		return nil, ai.ErrGeneratorNotConfigured
	}

	// Create OpenAI client configured for chat completion
	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.GeneratorHost),
		openai.WithToken("none"),
		openai.WithModel(config.GeneratorModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:        client,
		model:         config.GeneratorModel,
		contextWindow: config.ContextWindow,
		temperature:   config.Temperature,
		topP:          config.TopP,
		logger:        slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate produces an answer to the question grounded in the given records.
// The records must already fit the model's context window; Generate never
// truncates its input.
func (g *Generator) Generate(ctx context.Context, question string, records []*core.LogRecord) (string, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(answerSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildUserPrompt(question, records)),
			},
		},
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(g.temperature),
		llms.WithTopP(g.topP),
		llms.WithMaxTokens(maxAnswerTokens),
	)
	if err != nil {
		g.logger.Error("failed to generate answer", "records", len(records), "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		g.logger.Warn("no choices returned from model")
		return "", ErrEmptyCompletion
	}

	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == "" {
		return "", ErrEmptyCompletion
	}

	g.logger.Debug("generated answer", "records", len(records), "length", len(answer))
	return answer, nil
}

// ContextWindow returns the configured context window size in tokens.
func (g *Generator) ContextWindow() int {
	return g.contextWindow
}

// CountTokens estimates how many tokens the text occupies for the configured
// model.
func (g *Generator) CountTokens(text string) int {
	return llms.CountTokens(g.model, text)
}
