// Package qdrant implements the VectorStore port against a Qdrant server
// over its native gRPC API.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"ragstack/internal/adapter/vectorstore"
	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// Config holds the collection settings for a Qdrant store.
type Config struct {
	// Collection is the name of the Qdrant collection.
	Collection string
	// Dimension is the fixed vector size of the collection.
	Dimension int
}

// Store implements port.VectorStore for Qdrant. The collection is created
// lazily with cosine distance on first use.
type Store struct {
	client *qdrant.Client
	config Config
	prov   vectorstore.Provisioner
}

var _ port.VectorStore = (*Store)(nil)

// New creates a Qdrant store with the given client and config.
func New(client *qdrant.Client, config Config) *Store {
	return &Store{
		client: client,
		config: config,
	}
}

// EnsureCollection creates the collection if it does not exist. Safe to call
// concurrently; only the first caller provisions.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.prov.Do(ctx, s.provision)
}

func (s *Store) provision(ctx context.Context) error {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", domain.ErrBackend, err)
	}
	for _, name := range names {
		if name == s.config.Collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.config.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %q: %v", domain.ErrBackend, s.config.Collection, err)
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

	points := []*qdrant.PointStruct{
		{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(vector...),
			Payload: toPayload(metadata),
		},
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upsert: %v", domain.ErrBackend, err)
	}
	return id, nil
}

// StoreBatch upserts multiple vectors in one call. All inputs are validated
// before anything is written; Qdrant applies the upsert atomically, so a
// failure means nothing was committed.
func (s *Store) StoreBatch(ctx context.Context, vectors [][]float32, metadataList []map[string]any) ([]string, error) {
	if err := vectorstore.CheckBatch(s.config.Dimension, vectors, metadataList); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(vectors))
	points := make([]*qdrant.PointStruct, len(vectors))
	for i := range vectors {
		ids[i] = vectorstore.NewID()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: toPayload(metadataList[i]),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: batch upsert: %v", domain.ErrBackend, err)
	}
	return ids, nil
}

// Search returns the nearest vectors above scoreThreshold, descending by
// score. Qdrant's cosine score is already the calibrated similarity, so the
// threshold is applied natively.
func (s *Store) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64) ([]domain.SearchResult, error) {
	if err := vectorstore.CheckDimension(s.config.Dimension, vector); err != nil {
		return nil, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: qdrant.PtrOf(float32(scoreThreshold)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", domain.ErrBackend, err)
	}

	results := make([]domain.SearchResult, len(resp))
	for i, scored := range resp {
		results[i] = domain.SearchResult{
			ID:       scored.Id.GetUuid(),
			Score:    float64(scored.Score),
			Metadata: fromPayload(scored.Payload),
		}
	}
	return results, nil
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

	// Qdrant deletes are silent about missing points, so check first.
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.config.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(id)},
		WithVectors:    qdrant.NewWithVectors(false),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return false, fmt.Errorf("%w: get: %v", domain.ErrBackend, err)
	}
	if len(existing) == 0 {
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.Collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete: %v", domain.ErrBackend, err)
	}
	return true, nil
}

// toPayload maps record metadata onto qdrant payload values.
func toPayload(m map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		payload[k] = toValue(v)
	}
	return payload
}

// toValue wraps a metadata value in the matching qdrant payload kind.
// Unrecognized types are carried as their JSON encoding.
func toValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case float32:
		return qdrant.NewValueDouble(float64(val))
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case bool:
		return qdrant.NewValueBool(val)
	case []string:
		values := make([]*qdrant.Value, len(val))
		for i, s := range val {
			values[i] = qdrant.NewValueString(s)
		}
		return qdrant.NewValueList(&qdrant.ListValue{Values: values})
	case []any:
		values := make([]*qdrant.Value, len(val))
		for i, item := range val {
			values[i] = toValue(item)
		}
		return qdrant.NewValueList(&qdrant.ListValue{Values: values})
	default:
		data, _ := json.Marshal(v)
		return qdrant.NewValueString(string(data))
	}
}

// fromPayload rebuilds record metadata from a stored payload.
func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	if len(payload) == 0 {
		return nil
	}
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = fromValue(v)
	}
	return m
}

// fromValue unwraps a qdrant payload value. Unknown kinds decode as nil.
func fromValue(v *qdrant.Value) any {
	switch v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_DoubleValue:
		return v.GetDoubleValue()
	case *qdrant.Value_IntegerValue:
		return v.GetIntegerValue()
	case *qdrant.Value_BoolValue:
		return v.GetBoolValue()
	case *qdrant.Value_ListValue:
		list := v.GetListValue()
		if list == nil {
			return nil
		}
		items := make([]any, len(list.Values))
		for i, item := range list.Values {
			items[i] = fromValue(item)
		}
		return items
	default:
		return nil
	}
}
