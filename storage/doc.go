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


// Package storage provides the storage abstraction layer for logiq.
//
// This package defines the LogStore interface that decouples storage
// implementation from the ingestion and query pipelines, together with the
// shared at-rest codecs: MUS record serialization, float32 vector blob
// encoding, and cosine distance.
//
// # Backends
//
// Two interchangeable backends implement LogStore:
//
//   - storage/badger: embedded key-value store with an in-memory mode,
//     used by default and in tests
//   - storage/sqlite: relational store whose filters compile to SQL WHERE
//     clauses and whose distance runs as a registered SQL function
//
// Public constructors return the LogStore interface to prevent accidental
// coupling to a particular backend.
//
// # Invariants
//
// The store is append-only: records are immutable after persistence, so
// readers never block writers. A record and its embedding are persisted
// atomically, and a store never accepts or returns a vector whose dimension
// differs from the one pinned at Bootstrap.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines. Bootstrap in particular must tolerate concurrent
// invocation from independent workers.
package storage
