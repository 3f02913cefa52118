// Package memory implements the VectorStore port entirely in process
// memory. It exists for tests and ephemeral development runs; nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"ragstack/internal/adapter/vectorstore"
	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// Store is an in-memory vector store with brute-force cosine search.
type Store struct {
	dimension int
	prov      vectorstore.Provisioner

	mu      sync.RWMutex
	vectors map[string]entry
}

type entry struct {
	vector   []float32
	metadata map[string]any
}

var _ port.VectorStore = (*Store)(nil)

// New creates an empty in-memory store for vectors of the given dimension.
func New(dimension int) *Store {
	return &Store{
		dimension: dimension,
		vectors:   make(map[string]entry),
	}
}

// EnsureCollection is a no-op beyond flipping the readiness guard; the map
// is allocated at construction time.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.prov.Do(ctx, func(context.Context) error { return nil })
}

func (s *Store) StoreOne(ctx context.Context, vector []float32, metadata map[string]any, id string) (string, error) {
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return "", err
	}
	if id == "" {
		id = vectorstore.NewID()
	} else if err := vectorstore.ValidateID(id); err != nil {
		return "", err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.vectors[id] = entry{vector: vector, metadata: metadata}
	s.mu.Unlock()
	return id, nil
}

func (s *Store) StoreBatch(ctx context.Context, vectors [][]float32, metadataList []map[string]any) ([]string, error) {
	if err := vectorstore.CheckBatch(s.dimension, vectors, metadataList); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(vectors))
	s.mu.Lock()
	for i := range vectors {
		ids[i] = vectorstore.NewID()
		s.vectors[ids[i]] = entry{vector: vectors[i], metadata: metadataList[i]}
	}
	s.mu.Unlock()
	return ids, nil
}

func (s *Store) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.SearchResult, 0, len(s.vectors))
	for id, e := range s.vectors {
		score := vectorstore.Cosine(vector, e.vector)
		if score < scoreThreshold {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:       id,
			Score:    score,
			Metadata: e.metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vectors[id]; !ok {
		return false, nil
	}
	delete(s.vectors, id)
	return true, nil
}

// Len reports the number of stored vectors. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}
