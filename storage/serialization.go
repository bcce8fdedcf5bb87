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


package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/suchitkumarchennuri/logiq/core"
)

// Log records are serialized with the MUS format: varint scalars, length
// prefixed strings and blobs. Timestamps are stored as Unix microseconds,
// metadata as a nested JSON blob (it is an opaque associative payload with
// no schema of its own), and the embedding as a little-endian float32 blob
// shared with the SQLite backend.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, _, err := varint.Uint64.Unmarshal(data)
	return core.ID(id), err
}

// MarshalLogRecord serializes a LogRecord to bytes.
func MarshalLogRecord(record *core.LogRecord) ([]byte, error) {
	metadata, err := marshalMetadata(record.Metadata)
	if err != nil {
		return nil, err
	}
	vector := EncodeVector(record.Vector)

	size := varint.Uint64.Size(uint64(record.Id)) +
		varint.Int64.Size(record.CreatedAt.UnixMicro()) +
		varint.Int64.Size(record.Timestamp.UnixMicro()) +
		ord.String.Size(record.Service) +
		ord.String.Size(record.Level) +
		ord.String.Size(record.Message) +
		blobSize(metadata) +
		blobSize(vector)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(record.Id), buf)
	n += varint.Int64.Marshal(record.CreatedAt.UnixMicro(), buf[n:])
	n += varint.Int64.Marshal(record.Timestamp.UnixMicro(), buf[n:])
	n += ord.String.Marshal(record.Service, buf[n:])
	n += ord.String.Marshal(record.Level, buf[n:])
	n += ord.String.Marshal(record.Message, buf[n:])
	n += marshalBlob(metadata, buf[n:])
	marshalBlob(vector, buf[n:])
	return buf, nil
}

// UnmarshalLogRecord deserializes a LogRecord from bytes.
func UnmarshalLogRecord(data []byte) (*core.LogRecord, error) {
	record := &core.LogRecord{}

	id, n, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	record.Id = core.ID(id)

	createdAt, m, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %w", ErrSerializationFailed, err)
	}
	n += m
	record.CreatedAt = time.UnixMicro(createdAt).UTC()

	timestamp, m, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrSerializationFailed, err)
	}
	n += m
	record.Timestamp = time.UnixMicro(timestamp).UTC()

	if record.Service, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, fmt.Errorf("%w: service: %w", ErrSerializationFailed, err)
	}
	n += m
	if record.Level, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, fmt.Errorf("%w: level: %w", ErrSerializationFailed, err)
	}
	n += m
	if record.Message, m, err = ord.String.Unmarshal(data[n:]); err != nil {
		return nil, fmt.Errorf("%w: message: %w", ErrSerializationFailed, err)
	}
	n += m

	metadata, m, err := unmarshalBlob(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	n += m
	if record.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}

	vector, _, err := unmarshalBlob(data[n:])
	if err != nil {
		return nil, fmt.Errorf("%w: embedding: %w", ErrSerializationFailed, err)
	}
	if record.Vector, err = DecodeVector(vector); err != nil {
		return nil, err
	}

	return record, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
	}
	return metadata, nil
}

func blobSize(data []byte) int {
	return varint.Int.Size(len(data)) + len(data)
}

func marshalBlob(data []byte, buf []byte) (n int) {
	n = varint.Int.Marshal(len(data), buf)
	n += copy(buf[n:], data)
	return n
}

func unmarshalBlob(data []byte) (blob []byte, n int, err error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || n+length > len(data) {
		return nil, n, ErrTruncatedData
	}
	if length == 0 {
		return nil, n, nil
	}
	blob = make([]byte, length)
	copy(blob, data[n:n+length])
	return blob, n + length, nil
}
