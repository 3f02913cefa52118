// Package weaviate implements the VectorStore port against a Weaviate
// server using its HTTP/GraphQL API.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"ragstack/internal/adapter/vectorstore"
	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// metadataProperty is the single schema property carrying the JSON-encoded
// metadata payload. Keeping metadata opaque avoids declaring a typed
// property per caller field.
const metadataProperty = "metadata_json"

// Config holds the class settings for a Weaviate store.
type Config struct {
	// Class is the Weaviate class used for vector storage.
	Class string
	// Dimension is the fixed vector size of the class.
	Dimension int
}

// Store implements port.VectorStore for Weaviate. The class schema is
// created lazily with an hnsw cosine index on first use.
type Store struct {
	client *weaviate.Client
	config Config
	prov   vectorstore.Provisioner
}

var _ port.VectorStore = (*Store)(nil)

// New creates a Weaviate store with the given client and config.
func New(client *weaviate.Client, config Config) *Store {
	return &Store{
		client: client,
		config: config,
	}
}

// EnsureCollection creates the class schema if it does not exist. Safe to
// call concurrently; only the first caller provisions.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.prov.Do(ctx, s.provision)
}

func (s *Store) provision(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: get schema: %v", domain.ErrBackend, err)
	}
	for _, class := range schema.Classes {
		if class.Class == s.config.Class {
			return nil
		}
	}

	classObj := &models.Class{
		Class:           s.config.Class,
		Description:     "Embedding storage for semantic search",
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{
				Name:        metadataProperty,
				DataType:    []string{"text"},
				Description: "Serialized metadata payload",
			},
		},
	}

	if err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("%w: create class %q: %v", domain.ErrBackend, s.config.Class, err)
	}
	return nil
}

// StoreOne upserts a single vector. An empty id gets a generated UUID.
func (s *Store) StoreOne(ctx context.Context, vector []float32, metadata map[string]any, id string) (string, error) {
	if err := vectorstore.CheckDimension(s.config.Dimension, vector); err != nil {
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

	props, err := encodeMetadata(metadata)
	if err != nil {
		return "", err
	}

	exists, err := s.client.Data().Checker().
		WithClassName(s.config.Class).
		WithID(id).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: check object: %v", domain.ErrBackend, err)
	}

	if exists {
		err = s.client.Data().Updater().
			WithClassName(s.config.Class).
			WithID(id).
			WithProperties(props).
			WithVector(vector).
			Do(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: update object: %v", domain.ErrBackend, err)
		}
		return id, nil
	}

	_, err = s.client.Data().Creator().
		WithClassName(s.config.Class).
		WithID(id).
		WithProperties(props).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: create object: %v", domain.ErrBackend, err)
	}
	return id, nil
}

// StoreBatch upserts multiple vectors through the batch endpoint. Weaviate
// reports per-object outcomes; any object-level error fails the whole batch
// and callers must not assume any subset was committed.
func (s *Store) StoreBatch(ctx context.Context, vectors [][]float32, metadataList []map[string]any) ([]string, error) {
	if err := vectorstore.CheckBatch(s.config.Dimension, vectors, metadataList); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(vectors))
	objects := make([]*models.Object, len(vectors))
	for i := range vectors {
		props, err := encodeMetadata(metadataList[i])
		if err != nil {
			return nil, err
		}
		ids[i] = vectorstore.NewID()
		objects[i] = &models.Object{
			Class:      s.config.Class,
			ID:         strfmt.UUID(ids[i]),
			Properties: props,
			Vector:     vectors[i],
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().
		WithObjects(objects...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: batch store: %v", domain.ErrBackend, err)
	}
	for _, item := range resp {
		if item.Result == nil || item.Result.Errors == nil {
			continue
		}
		for _, e := range item.Result.Errors.Error {
			if e != nil && e.Message != "" {
				return nil, fmt.Errorf("%w: batch store object %s: %s", domain.ErrBackend, item.ID, e.Message)
			}
		}
	}
	return ids, nil
}

// Search runs a nearVector GraphQL query and normalizes scores to the shared
// scale: certainty when Weaviate reports one, max(0, 1-distance) otherwise.
// Entries below scoreThreshold are dropped, not just sorted last.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckDimension(s.config.Dimension, vector); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: metadataProperty},
		{
			Name: "_additional",
			Fields: []graphql.Field{
				{Name: "id"},
				{Name: "certainty"},
				{Name: "distance"},
			},
		},
	}

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.config.Class).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: near-vector query: %v", domain.ErrBackend, err)
	}

	return parseSearchResults(resp, s.config.Class, scoreThreshold)
}

// DeleteByID removes a vector. Returns false without error when the id does
// not exist. A malformed id cannot name a stored vector, so it is treated as
// absent rather than rejected.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := vectorstore.ValidateID(id); err != nil {
		return false, nil
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return false, err
	}

	exists, err := s.client.Data().Checker().
		WithClassName(s.config.Class).
		WithID(id).
		Do(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: check object: %v", domain.ErrBackend, err)
	}
	if !exists {
		return false, nil
	}

	err = s.client.Data().Deleter().
		WithClassName(s.config.Class).
		WithID(id).
		Do(ctx)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete object: %v", domain.ErrBackend, err)
	}
	return true, nil
}

// isNotFoundError checks if the error indicates a not found condition.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "404") || strings.Contains(errStr, "not found")
}

// encodeMetadata serializes metadata into the single metadata_json property.
func encodeMetadata(metadata map[string]any) (map[string]any, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata not serializable: %v", domain.ErrInvalidInput, err)
	}
	return map[string]any{metadataProperty: string(data)}, nil
}

// parseSearchResults converts a GraphQL response into normalized, filtered,
// descending-ordered results.
func parseSearchResults(resp *models.GraphQLResponse, class string, scoreThreshold float64) ([]domain.SearchResult, error) {
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: graphql: %s", domain.ErrBackend, resp.Errors[0].Message)
	}

	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil
	}
	items, ok := data[class].([]any)
	if !ok {
		return nil, nil
	}

	results := make([]domain.SearchResult, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		additional, _ := obj["_additional"].(map[string]any)
		id, _ := additional["id"].(string)

		var score float64
		if certainty, ok := additional["certainty"].(float64); ok {
			score = certainty
		} else {
			distance, ok := additional["distance"].(float64)
			if !ok {
				distance = 1.0
			}
			score = vectorstore.ScoreFromDistance(distance)
		}
		if score < scoreThreshold {
			continue
		}

		results = append(results, domain.SearchResult{
			ID:       id,
			Score:    score,
			Metadata: decodeMetadata(obj[metadataProperty]),
		})
	}

	// Weaviate orders by distance; re-sort on the normalized score so the
	// contract holds even when certainty and distance disagree.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// decodeMetadata parses the metadata_json property. Unparseable payloads are
// preserved under a raw_metadata key instead of being dropped.
func decodeMetadata(raw any) map[string]any {
	str, ok := raw.(string)
	if !ok || str == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(str), &m); err != nil {
		return map[string]any{"raw_metadata": str}
	}
	return m
}
