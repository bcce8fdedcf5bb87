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


package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"

	"github.com/suchitkumarchennuri/logiq/core"
	"github.com/suchitkumarchennuri/logiq/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	service TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	metadata TEXT,
	embedding BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logs_service ON logs(service);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at);

CREATE TABLE IF NOT EXISTS logs_meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const dimensionKey = "embedding_dimensions"

var registerFunctionsOnce sync.Once

// registerDistanceFunction makes vec_cosine_distance available to every
// connection the driver opens after this call. Registration is global to the
// driver, hence the package-level once.
func registerDistanceFunction() {
	registerFunctionsOnce.Do(func() {
		_ = sqlite.RegisterDeterministicScalarFunction("vec_cosine_distance", 2, cosineDistanceFunc)
	})
}

func cosineDistanceFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine_distance: expected 2 arguments, got %d", len(args))
	}

	blobs := make([][]float32, 2)
	for i, arg := range args {
		raw, ok := arg.([]byte)
		if !ok {
			return nil, fmt.Errorf("vec_cosine_distance: argument %d is %T, want BLOB", i+1, arg)
		}
		vec, err := storage.DecodeVector(raw)
		if err != nil {
			return nil, err
		}
		blobs[i] = vec
	}

	distance, err := storage.CosineDistance(blobs[0], blobs[1])
	if err != nil {
		return nil, err
	}
	return float64(distance), nil
}

// Store implements storage.LogStore on a SQLite database file. Embeddings
// are stored as little-endian float32 blobs and compared in SQL through the
// vec_cosine_distance scalar function.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.LogStore = (*Store)(nil)

// Open opens or creates a SQLite-backed log store at the given path. Pass
// ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (storage.LogStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registerDistanceFunction()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	return &Store{
		db:     db,
		logger: logger.With("component", "sqlite-store"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Bootstrap creates the schema and pins the embedding dimension. The schema
// statements are IF NOT EXISTS and the meta row is inserted with ON CONFLICT
// DO NOTHING, so concurrent callers converge on whichever dimension landed
// first; a caller configured with a different one gets an error.
func (s *Store) Bootstrap(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimension %d", storage.ErrDimensionMismatch, dimensions)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
		dimensionKey, dimensions)
	if err != nil {
		return fmt.Errorf("pinning dimension: %w", err)
	}

	stored, err := s.dims(ctx)
	if err != nil {
		return err
	}
	if stored != dimensions {
		return fmt.Errorf("%w: store has %d, configured %d", storage.ErrDimensionMismatch, stored, dimensions)
	}

	s.logger.Debug("log store bootstrapped", "dimensions", dimensions)
	return nil
}

func (s *Store) dims(ctx context.Context) (int, error) {
	var stored int
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM logs_meta WHERE key = ?`, dimensionKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrNotBootstrapped
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return 0, storage.ErrNotBootstrapped
		}
		return 0, err
	}
	return stored, nil
}

// Add atomically persists records with their embeddings in one transaction.
func (s *Store) Add(ctx context.Context, records ...*core.LogRecord) ([]*core.LogRecord, error) {
	dims, err := s.dims(ctx)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if len(record.Vector) == 0 {
			return nil, storage.ErrMissingEmbedding
		}
		if len(record.Vector) != dims {
			return nil, fmt.Errorf("%w: record has %d, store has %d", storage.ErrDimensionMismatch, len(record.Vector), dims)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, record := range records {
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now().UTC()
		}
		if record.Timestamp.IsZero() {
			record.Timestamp = record.CreatedAt
		}

		metadata, err := encodeMetadata(record.Metadata)
		if err != nil {
			return nil, err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO logs (created_at, timestamp, service, level, message, metadata, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.CreatedAt.UnixMicro(), record.Timestamp.UnixMicro(),
			record.Service, record.Level, record.Message,
			metadata, storage.EncodeVector(record.Vector))
		if err != nil {
			return nil, fmt.Errorf("inserting record: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, err
		}
		record.Id = core.ID(id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get retrieves a single log record by ID.
func (s *Store) Get(ctx context.Context, id core.ID) (*core.LogRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, timestamp, service, level, message, metadata, embedding
		 FROM logs WHERE id = ?`, int64(id))

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, storage.ErrNotBootstrapped
		}
		return nil, err
	}
	return record, nil
}

// Search pushes both the filter and the distance ordering into SQL. Rows
// come back ordered by ascending cosine distance with recency breaking ties.
func (s *Store) Search(ctx context.Context, vector []float32, filter core.QueryFilter, limit int) ([]core.ScoredRecord, error) {
	dims, err := s.dims(ctx)
	if err != nil {
		return nil, err
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d, store has %d", storage.ErrDimensionMismatch, len(vector), dims)
	}
	if limit <= 0 {
		return []core.ScoredRecord{}, nil
	}

	query := `SELECT id, created_at, timestamp, service, level, message, metadata, embedding,
		vec_cosine_distance(embedding, ?) AS distance FROM logs`
	args := []any{storage.EncodeVector(vector)}

	var conditions []string
	if filter.Service != "" {
		conditions = append(conditions, "service = ?")
		args = append(args, filter.Service)
	}
	if filter.Level != "" {
		conditions = append(conditions, "level = ?")
		args = append(args, filter.Level)
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Start.UnixMicro())
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.End.UnixMicro())
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY distance ASC, created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []core.ScoredRecord{}
	for rows.Next() {
		record, distance, err := scanScoredRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, core.ScoredRecord{Record: record, Distance: distance})
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.LogRecord, error) {
	var (
		record            core.LogRecord
		id                int64
		createdAt, logged int64
		metadata          sql.NullString
		embedding         []byte
	)
	if err := row.Scan(&id, &createdAt, &logged, &record.Service, &record.Level,
		&record.Message, &metadata, &embedding); err != nil {
		return nil, err
	}
	return populateRecord(&record, id, createdAt, logged, metadata, embedding)
}

func scanScoredRecord(row rowScanner) (*core.LogRecord, float32, error) {
	var (
		record            core.LogRecord
		id                int64
		createdAt, logged int64
		metadata          sql.NullString
		embedding         []byte
		distance          float64
	)
	if err := row.Scan(&id, &createdAt, &logged, &record.Service, &record.Level,
		&record.Message, &metadata, &embedding, &distance); err != nil {
		return nil, 0, err
	}
	populated, err := populateRecord(&record, id, createdAt, logged, metadata, embedding)
	if err != nil {
		return nil, 0, err
	}
	return populated, float32(distance), nil
}

func populateRecord(record *core.LogRecord, id, createdAt, logged int64, metadata sql.NullString, embedding []byte) (*core.LogRecord, error) {
	record.Id = core.ID(id)
	record.CreatedAt = time.UnixMicro(createdAt).UTC()
	record.Timestamp = time.UnixMicro(logged).UTC()

	meta, err := decodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	record.Metadata = meta

	vector, err := storage.DecodeVector(embedding)
	if err != nil {
		return nil, err
	}
	record.Vector = vector
	return record, nil
}

func encodeMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeMetadata(metadata sql.NullString) (map[string]any, error) {
	if !metadata.Valid || metadata.String == "" {
		return map[string]any{}, nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(metadata.String), &out); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return out, nil
}
