// Package bolt implements the VectorStore port on a local BoltDB file.
// Search is brute-force cosine over an in-memory copy of the vectors, which
// is plenty for development and offline use.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"ragstack/internal/adapter/vectorstore"
	"ragstack/internal/domain"
	"ragstack/internal/port"
)

var bucketVectors = []byte("vectors")

// Store implements port.VectorStore using BoltDB for persistence.
type Store struct {
	db        *bbolt.DB
	dimension int
	prov      vectorstore.Provisioner

	mu sync.RWMutex
	// In-memory cache for fast search
	vectors map[string]vectorEntry
}

type vectorEntry struct {
	vector   []float32
	metadata map[string]any
}

var _ port.VectorStore = (*Store)(nil)

// New creates a BoltDB-backed vector store. The vectors bucket is created
// lazily on first use.
func New(db *bbolt.DB, dimension int) *Store {
	return &Store{
		db:        db,
		dimension: dimension,
		vectors:   make(map[string]vectorEntry),
	}
}

// EnsureCollection creates the vectors bucket and loads existing vectors
// into memory. Idempotent and safe under concurrent first use.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.prov.Do(ctx, s.provision)
}

func (s *Store) provision(context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: create vectors bucket: %v", domain.ErrBackend, err)
	}
	if err := s.loadVectors(); err != nil {
		return fmt.Errorf("%w: load vectors: %v", domain.ErrBackend, err)
	}
	return nil
}

// loadVectors loads all persisted vectors into memory.
func (s *Store) loadVectors() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var record domain.VectorRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil // Skip corrupted entries
			}
			s.vectors[string(k)] = vectorEntry{
				vector:   record.Vector,
				metadata: record.Metadata,
			}
			return nil
		})
	})
}

// StoreOne upserts a single vector. An empty id gets a generated UUID.
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
	if err := s.put([]string{id}, [][]float32{vector}, []map[string]any{metadata}); err != nil {
		return "", err
	}
	return id, nil
}

// StoreBatch upserts multiple vectors inside one bbolt transaction, so the
// batch commits or fails as a whole.
func (s *Store) StoreBatch(ctx context.Context, vectors [][]float32, metadataList []map[string]any) ([]string, error) {
	if err := vectorstore.CheckBatch(s.dimension, vectors, metadataList); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(vectors))
	for i := range ids {
		ids[i] = vectorstore.NewID()
	}
	if err := s.put(ids, vectors, metadataList); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) put(ids []string, vectors [][]float32, metadataList []map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}
		for i, id := range ids {
			data, err := json.Marshal(domain.VectorRecord{
				ID:       id,
				Vector:   vectors[i],
				Metadata: metadataList[i],
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: store: %v", domain.ErrBackend, err)
	}

	// Update the cache only after the transaction committed.
	for i, id := range ids {
		s.vectors[id] = vectorEntry{
			vector:   vectors[i],
			metadata: metadataList[i],
		}
	}
	return nil
}

// Search finds the nearest vectors by cosine similarity, drops entries below
// scoreThreshold, and returns at most limit results in descending order.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckDimension(s.dimension, vector); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	scored := make([]domain.SearchResult, 0, len(s.vectors))
	for id, entry := range s.vectors {
		score := vectorstore.Cosine(vector, entry.vector)
		if score < scoreThreshold {
			continue
		}
		scored = append(scored, domain.SearchResult{
			ID:       id,
			Score:    score,
			Metadata: entry.metadata,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit < len(scored) {
		scored = scored[:limit]
	}
	return scored, nil
}

// DeleteByID removes a vector. Returns false without error when the id does
// not exist.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vectors[id]; !ok {
		return false, nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete: %v", domain.ErrBackend, err)
	}
	delete(s.vectors, id)
	return true, nil
}
