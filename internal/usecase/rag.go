package usecase

import (
	"context"
	"fmt"
	"strings"

	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// Defaults applied when a query leaves retrieval parameters unset.
const (
	DefaultTopK           = 5
	DefaultScoreThreshold = 0.7
)

// RAGService composes an embedder, a vector store, and an LLM into the two
// RAG workflows: answering queries against stored context, and ingesting
// documents so they become retrievable. All collaborators are injected at
// construction; the service holds no other state.
type RAGService struct {
	embedder port.Embedder
	store    port.VectorStore
	llm      port.LLM
}

// NewRAGService creates a RAG service from its three collaborators.
func NewRAGService(embedder port.Embedder, store port.VectorStore, llm port.LLM) *RAGService {
	return &RAGService{
		embedder: embedder,
		store:    store,
		llm:      llm,
	}
}

// QueryInput carries one RAG query. TopK <= 0 uses DefaultTopK.
type QueryInput struct {
	Query          string
	TopK           int
	ScoreThreshold float64
	SystemPrompt   string
}

// Query answers a question from stored context: embed the query, search the
// vector store, assemble the retrieved text into a prompt, and generate.
// Zero search results are not an error; generation proceeds with an empty
// context block and the answer is context-free. A failure in any step aborts
// the whole call.
func (s *RAGService) Query(ctx context.Context, in QueryInput) (*domain.RAGResult, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.EmbedOne(ctx, query, port.EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sources, err := s.store.Search(ctx, vector, topK, in.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	response, err := s.llm.Generate(ctx, port.GenerateRequest{
		Prompt:       buildPrompt(sources, query),
		SystemPrompt: in.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	return &domain.RAGResult{
		Query:    query,
		Response: response,
		Sources:  sources,
	}, nil
}

// Ingest embeds all documents in one batch and stores them with their full
// metadata, including the text itself so it is retrievable as context
// later. Returns the vector ids in document order. Any embedding or storage
// failure aborts the whole call with no documents claimed stored.
func (s *RAGService) Ingest(ctx context.Context, docs []domain.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			return nil, fmt.Errorf("%w: document %d has empty text", domain.ErrInvalidInput, i)
		}
		texts[i] = doc.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts, port.EmbedModeDocument)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: embedded %d documents, got %d vectors",
			domain.ErrProvider, len(docs), len(vectors))
	}

	metadataList := make([]map[string]any, len(docs))
	for i, doc := range docs {
		metadata := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		metadata[domain.MetadataTextKey] = doc.Text
		metadataList[i] = metadata
	}

	ids, err := s.store.StoreBatch(ctx, vectors, metadataList)
	if err != nil {
		return nil, fmt.Errorf("store documents: %w", err)
	}
	return ids, nil
}

// Generate is the retrieval-free passthrough to the generation provider.
func (s *RAGService) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	return s.llm.Generate(ctx, req)
}

// GenerateStream is the streaming passthrough. The caller must Close the
// returned stream on every exit path.
func (s *RAGService) GenerateStream(ctx context.Context, req port.GenerateRequest) (port.GenerationStream, error) {
	return s.llm.GenerateStream(ctx, req)
}

// DeleteVector removes a stored vector by id. Returns false when the id was
// not present.
func (s *RAGService) DeleteVector(ctx context.Context, id string) (bool, error) {
	return s.store.DeleteByID(ctx, id)
}

// buildPrompt assembles the fixed RAG prompt: the retrieved text blocks in
// result order separated by blank lines, the question, and the instruction
// to answer from context only.
func buildPrompt(sources []domain.SearchResult, query string) string {
	parts := make([]string, 0, len(sources))
	for _, source := range sources {
		if text, ok := source.Metadata[domain.MetadataTextKey].(string); ok {
			parts = append(parts, text)
		}
	}
	context := strings.Join(parts, "\n\n")

	return fmt.Sprintf(`Context information:
%s

User question: %s

Please answer the question based on the provided context.`, context, query)
}
