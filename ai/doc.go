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


// Package ai provides abstractions for the AI services used in Logiq.
//
// This package defines interfaces for text embeddings and answer synthesis.
// It follows the dependency inversion principle, allowing the storage,
// ingestion and query layers to depend on abstractions rather than concrete
// implementations.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Synthesizes natural-language answers from retrieved logs
//   - Provider: Aggregates AI services for convenient initialization
//
// Both services are expensive to stand up, so LazyProvider guards their
// initialization with an exclusive at-most-once discipline: the first caller
// performs the initialization while concurrent callers block and share the
// result. A failed initialization is cached and fatal to every later caller
// in the process.
//
// Answer synthesis is optional. Whether a Provider carries a Generator is
// decided once from configuration (GeneratorModel set or empty) and exposed
// as HasGenerator; absence is an expected, degraded-but-valid mode in which
// the query pipeline produces deterministic fallback answers.
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// interface types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return concrete types to
// enable behavior injection and call-count assertions.
package ai
