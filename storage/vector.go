package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/suchitkumarchennuri/logiq/core"
)

// EncodeVector encodes a float32 vector into a BLOB representation suitable
// for at-rest storage. The encoding is a little-endian sequence of IEEE 754
// float32 values without a length prefix; the dimension is derived from the
// BLOB size on decode.
func EncodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector decodes a BLOB produced by EncodeVector back into a float32
// vector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: embedding blob length %d not a multiple of 4", ErrSerializationFailed, len(b))
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineDistance computes the cosine distance (1 - cosine similarity)
// between two vectors. Zero means identical direction; smaller is more
// similar. It returns an error if the vectors have different lengths or if
// either vector has zero magnitude.
func CosineDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: empty vectors", ErrDimensionMismatch)
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("cosine distance with zero-magnitude vector")
	}
	return float32(1 - dot/(math.Sqrt(na2)*math.Sqrt(nb2))), nil
}

// SortScored orders search hits by ascending distance, breaking ties with
// the most recent CreatedAt first.
func SortScored(results []core.ScoredRecord) {
	slices.SortFunc(results, func(a, b core.ScoredRecord) int {
		if a.Distance < b.Distance {
			return -1
		}
		if a.Distance > b.Distance {
			return 1
		}
		return compareCreatedAtDesc(a.Record.CreatedAt, b.Record.CreatedAt)
	})
}

func compareCreatedAtDesc(a, b time.Time) int {
	if a.After(b) {
		return -1
	}
	if a.Before(b) {
		return 1
	}
	return 0
}
