// Package vectorstore holds behavior shared by every vector store backend:
// input validation, score normalization, id handling, and the lazy
// collection-provisioning guard. Backends call these helpers directly; there
// is no base type to inherit from.
package vectorstore

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"ragstack/internal/domain"
)

// CheckDimension rejects vectors whose length differs from the collection
// dimension. Mismatches are never truncated or padded.
func CheckDimension(want int, vector []float32) error {
	if len(vector) != want {
		return fmt.Errorf("%w: vector dimension mismatch: expected %d, got %d",
			domain.ErrInvalidInput, want, len(vector))
	}
	return nil
}

// CheckBatch validates a StoreBatch call in full before any write is issued:
// matching slice lengths first, then every vector's dimension.
func CheckBatch(want int, vectors [][]float32, metadataList []map[string]any) error {
	if len(vectors) != len(metadataList) {
		return fmt.Errorf("%w: vectors and metadata lists must have same length: %d vectors, %d metadata entries",
			domain.ErrInvalidInput, len(vectors), len(metadataList))
	}
	for i, v := range vectors {
		if err := CheckDimension(want, v); err != nil {
			return fmt.Errorf("vector %d: %w", i, err)
		}
	}
	return nil
}

// ScoreFromDistance converts a backend's raw distance to the shared
// similarity scale where higher means more similar. Backends that report a
// calibrated certainty use it directly instead.
func ScoreFromDistance(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	return score
}

// Cosine computes the cosine similarity between two vectors of equal
// length. Zero-norm inputs score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NewID returns a store-generated record id.
func NewID() string {
	return uuid.NewString()
}

// ValidateID checks a caller-supplied record id. Both remote backends
// address records by UUID, so anything else is rejected up front.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: record id must be a UUID, got %q", domain.ErrInvalidInput, id)
	}
	return nil
}
