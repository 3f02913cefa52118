package port

import "context"

// EmbedMode tags which side of the similarity pairing a text belongs to.
// Providers may produce different vectors for the two modes, so the mode is
// always passed explicitly at call time and never inferred.
type EmbedMode string

const (
	// EmbedModeDocument embeds text that will be stored and retrieved.
	EmbedModeDocument EmbedMode = "document"
	// EmbedModeQuery embeds text used to search stored documents.
	EmbedModeQuery EmbedMode = "query"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// EmbedOne generates an embedding for a single text. The text must be
	// non-empty after trimming whitespace.
	EmbedOne(ctx context.Context, text string, mode EmbedMode) ([]float32, error)

	// EmbedBatch generates embeddings for the given texts, one vector per
	// input in the same order. A remote failure or a count mismatch fails
	// the whole batch; no partial result is surfaced.
	EmbedBatch(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
