package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ragstack/internal/adapter/embedding"
	"ragstack/internal/adapter/vectorstore/memory"
	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// fakeLLM records the last request and returns a canned response.
type fakeLLM struct {
	lastReq  port.GenerateRequest
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	f.lastReq = req
	return f.response, f.err
}

func (f *fakeLLM) GenerateStream(ctx context.Context, req port.GenerateRequest) (port.GenerationStream, error) {
	f.lastReq = req
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) ModelName() string { return "fake" }

// failingEmbedder always errors, to test abort-before-store behavior.
type failingEmbedder struct{}

func (failingEmbedder) EmbedOne(context.Context, string, port.EmbedMode) ([]float32, error) {
	return nil, fmt.Errorf("%w: embedder down", domain.ErrProvider)
}

func (failingEmbedder) EmbedBatch(context.Context, []string, port.EmbedMode) ([][]float32, error) {
	return nil, fmt.Errorf("%w: embedder down", domain.ErrProvider)
}

func (failingEmbedder) Dimension() int    { return 8 }
func (failingEmbedder) ModelName() string { return "failing" }

func newTestService(t *testing.T) (*RAGService, *memory.Store, *fakeLLM) {
	t.Helper()
	embedder := embedding.NewMockEmbedder(8)
	store := memory.New(8)
	llm := &fakeLLM{response: "generated answer"}
	return NewRAGService(embedder, store, llm), store, llm
}

func TestIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	svc, store, llm := newTestService(t)

	ids, err := svc.Ingest(ctx, []domain.Document{
		{Text: "Paris is the capital of France.", Metadata: map[string]any{"source": "geo.md"}},
		{Text: "Go compiles fast.", Metadata: map[string]any{"source": "go.md"}},
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 stored vectors, got %d", store.Len())
	}

	// The mock embedder scores unrelated ASCII text fairly high, so only a
	// tight threshold isolates the exact-match document.
	result, err := svc.Query(ctx, QueryInput{
		Query:          "Paris is the capital of France.",
		TopK:           5,
		ScoreThreshold: 0.99,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Response != "generated answer" {
		t.Errorf("response = %q", result.Response)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("expected exactly the matching document, got %d sources", len(result.Sources))
	}
	if result.Sources[0].Metadata["source"] != "geo.md" {
		t.Errorf("wrong source retrieved: %v", result.Sources[0].Metadata)
	}

	// The stored text must flow into the prompt as context.
	if !strings.Contains(llm.lastReq.Prompt, "Paris is the capital of France.") {
		t.Errorf("prompt missing retrieved context:\n%s", llm.lastReq.Prompt)
	}
}

func TestQueryPromptTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _, llm := newTestService(t)

	if _, err := svc.Ingest(ctx, []domain.Document{{Text: "alpha beta"}}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if _, err := svc.Query(ctx, QueryInput{Query: "alpha beta"}); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	want := "Context information:\nalpha beta\n\nUser question: alpha beta\n\nPlease answer the question based on the provided context."
	if llm.lastReq.Prompt != want {
		t.Errorf("prompt = %q, want %q", llm.lastReq.Prompt, want)
	}
}

func TestQueryEmptyStoreStillGenerates(t *testing.T) {
	ctx := context.Background()
	svc, _, llm := newTestService(t)

	result, err := svc.Query(ctx, QueryInput{Query: "anything", ScoreThreshold: 0.9})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(result.Sources) != 0 {
		t.Errorf("expected no sources, got %d", len(result.Sources))
	}
	if result.Response != "generated answer" {
		t.Errorf("response = %q", result.Response)
	}
	if !strings.Contains(llm.lastReq.Prompt, "User question: anything") {
		t.Errorf("prompt missing question:\n%s", llm.lastReq.Prompt)
	}
}

func TestQueryValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Query(context.Background(), QueryInput{Query: "   "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQueryPassesSystemPrompt(t *testing.T) {
	svc, _, llm := newTestService(t)

	_, err := svc.Query(context.Background(), QueryInput{
		Query:        "q",
		SystemPrompt: "answer in French",
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if llm.lastReq.SystemPrompt != "answer in French" {
		t.Errorf("system prompt = %q", llm.lastReq.SystemPrompt)
	}
}

func TestIngestRejectsEmptyDocument(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), []domain.Document{
		{Text: "fine"},
		{Text: "   "},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("rejected ingest wrote %d vectors", store.Len())
	}
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	store := memory.New(8)
	svc := NewRAGService(failingEmbedder{}, store, &fakeLLM{})

	_, err := svc.Ingest(context.Background(), []domain.Document{{Text: "doc"}})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("failed ingest wrote %d vectors", store.Len())
	}
}

// failingStore rejects writes, to test that a backend failure aborts ingest.
type failingStore struct {
	*memory.Store
}

func (failingStore) StoreBatch(context.Context, [][]float32, []map[string]any) ([]string, error) {
	return nil, fmt.Errorf("%w: write rejected", domain.ErrBackend)
}

func TestIngestStoreFailureAborts(t *testing.T) {
	svc := NewRAGService(embedding.NewMockEmbedder(8), failingStore{memory.New(8)}, &fakeLLM{})

	_, err := svc.Ingest(context.Background(), []domain.Document{{Text: "doc"}})
	if !errors.Is(err, domain.ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
}

func TestIngestNoDocuments(t *testing.T) {
	svc, _, _ := newTestService(t)

	ids, err := svc.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestIngestAddsTextToMetadata(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	if _, err := svc.Ingest(ctx, []domain.Document{
		{Text: "the content", Metadata: map[string]any{"source": "a.md"}},
	}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	results, err := store.Search(ctx, mustEmbed(t, "the content"), 1, 0.0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Metadata[domain.MetadataTextKey] != "the content" {
		t.Errorf("text not stored in metadata: %v", results[0].Metadata)
	}
	if results[0].Metadata["source"] != "a.md" {
		t.Errorf("caller metadata lost: %v", results[0].Metadata)
	}
}

func TestQueryEmbedFailureAborts(t *testing.T) {
	svc := NewRAGService(failingEmbedder{}, memory.New(8), &fakeLLM{})

	_, err := svc.Query(context.Background(), QueryInput{Query: "q"})
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}

func TestDeleteVector(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	ids, err := svc.Ingest(ctx, []domain.Document{{Text: "to be deleted"}})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	found, err := svc.DeleteVector(ctx, ids[0])
	if err != nil {
		t.Fatalf("DeleteVector failed: %v", err)
	}
	if !found {
		t.Error("expected found=true")
	}

	found, err = svc.DeleteVector(ctx, ids[0])
	if err != nil {
		t.Fatalf("second DeleteVector failed: %v", err)
	}
	if found {
		t.Error("expected found=false for already-deleted id")
	}
}

func mustEmbed(t *testing.T, text string) []float32 {
	t.Helper()
	vec, err := embedding.NewMockEmbedder(8).EmbedOne(context.Background(), text, port.EmbedModeQuery)
	if err != nil {
		t.Fatalf("mock embed failed: %v", err)
	}
	return vec
}
