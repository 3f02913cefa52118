package port

import (
	"context"

	"ragstack/internal/domain"
)

// VectorStore stores and searches embedding vectors in a named collection.
// Implementations provision the collection lazily on first use; the first
// caller performs provisioning while concurrent callers wait for its result,
// and a provisioning failure is retriable on a later call.
type VectorStore interface {
	// EnsureCollection provisions the backing collection if it does not
	// exist yet. Idempotent; also invoked implicitly by the operations
	// below.
	EnsureCollection(ctx context.Context) error

	// StoreOne upserts a single vector with its metadata. When id is empty
	// the store generates one. Returns the record id.
	StoreOne(ctx context.Context, vector []float32, metadata map[string]any, id string) (string, error)

	// StoreBatch upserts multiple vectors with their metadata and returns
	// the generated ids in input order. Every vector is validated before
	// any write is issued; a partial backend failure fails the whole batch
	// and callers must not assume any subset was committed.
	StoreBatch(ctx context.Context, vectors [][]float32, metadataList []map[string]any) ([]string, error)

	// Search returns up to limit results ordered by descending score, each
	// with score >= scoreThreshold after normalization.
	Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]domain.SearchResult, error)

	// DeleteByID removes a vector. Returns false, not an error, when no
	// record with the id exists. A malformed id names no record and is
	// treated as absent.
	DeleteByID(ctx context.Context, id string) (bool, error)
}
