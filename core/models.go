package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for persisted log records.
// It is assigned by the storage backend at insert time.
type ID uint64

// Fingerprint is a stable content-based identity for an ingestion payload.
// Because queue delivery is at-least-once, a payload may be processed more
// than once before a record ID exists; the fingerprint lets workers and
// dead-letter sinks correlate those deliveries. It is never used for
// deduplication.
type Fingerprint uint64

// FingerprintFromContent derives a deterministic fingerprint from text using
// BLAKE2b hashing, so identical content always produces the same value.
func FingerprintFromContent(text string) Fingerprint {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum))
}

// LogPayload is a raw log event as accepted at the ingestion boundary.
// It carries no embedding; the ingestion pipeline enriches and persists it.
type LogPayload struct {
	Service   string
	Level     string
	Message   string
	Timestamp time.Time      // When the emitting service produced the event (optional)
	Metadata  map[string]any // Opaque attribute map, JSON-compatible scalars
}

// Fingerprint returns the content fingerprint of the payload's identifying
// fields.
func (p *LogPayload) Fingerprint() Fingerprint {
	return FingerprintFromContent(p.Service + "\x00" + p.Level + "\x00" + p.Message)
}

// LogRecord is a persisted log event with its embedding vector.
// Records are immutable once written.
type LogRecord struct {
	Id        ID
	CreatedAt time.Time // Server-assigned insert time (UTC)
	Timestamp time.Time // Event time reported by the emitting service
	Service   string
	Level     string
	Message   string         // The embedded field
	Metadata  map[string]any // Opaque attribute map, stored as-is
	Vector    []float32      // Embedding of Message, dimension fixed at bootstrap
}

// QueryFilter holds optional constraints for similarity search.
// Zero values mean "unset"; set fields combine with logical AND.
type QueryFilter struct {
	Service string    // Exact match on Service
	Level   string    // Exact match on Level
	Start   time.Time // Inclusive lower bound on CreatedAt
	End     time.Time // Inclusive upper bound on CreatedAt
	Limit   int       // Requested result count; 0 uses the configured default
}

// Matches reports whether a record satisfies every set filter field.
func (f *QueryFilter) Matches(record *LogRecord) bool {
	if f.Service != "" && record.Service != f.Service {
		return false
	}
	if f.Level != "" && record.Level != f.Level {
		return false
	}
	if !f.Start.IsZero() && record.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && record.CreatedAt.After(f.End) {
		return false
	}
	return true
}

// ScoredRecord is a similarity search hit: a record and its distance from
// the query vector. Smaller distance means higher relevance.
type ScoredRecord struct {
	Record   *LogRecord
	Distance float32
}

// QueryResponse is the result of a retrieval-augmented query.
type QueryResponse struct {
	Answer     string
	Contexts   []ScoredRecord // Records actually supplied to synthesis, ranked
	RequestedK int            // Result count asked for, after clamping
	UsedK      int            // Records included in the context
}

// Logs returns the context records without their distances.
func (r *QueryResponse) Logs() []*LogRecord {
	logs := make([]*LogRecord, len(r.Contexts))
	for i, c := range r.Contexts {
		logs[i] = c.Record
	}
	return logs
}
