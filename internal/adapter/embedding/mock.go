package embedding

import (
	"context"
	"fmt"
	"strings"

	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// MockEmbedder produces deterministic pseudo-embeddings derived from the
// text's runes. Both modes produce the same vector so that stored documents
// are retrievable by a query with overlapping text. For tests and offline
// runs only.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) EmbedOne(ctx context.Context, text string, mode port.EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text for embedding", domain.ErrInvalidInput)
	}
	return e.embed(text), nil
}

func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string, mode port.EmbedMode) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", domain.ErrInvalidInput, i)
		}
		embeddings[i] = e.embed(text)
	}
	return embeddings, nil
}

func (e *MockEmbedder) embed(text string) []float32 {
	vector := make([]float32, e.dimension)
	for j, r := range text {
		if j < e.dimension {
			vector[j] = float32(r) / 1000.0
		}
	}
	return vector
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}

var _ port.Embedder = (*MockEmbedder)(nil)
