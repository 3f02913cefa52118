package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"ragstack/internal/domain"
	"ragstack/internal/port"
)

func newVoyageTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestEmbedder(t *testing.T, baseURL string, batchSize int) *VoyageEmbedder {
	t.Helper()
	t.Setenv("TEST_VOYAGE_KEY", "test-key")
	e, err := NewVoyageEmbedder("TEST_VOYAGE_KEY", "voyage-2", baseURL, 3, batchSize)
	if err != nil {
		t.Fatalf("NewVoyageEmbedder failed: %v", err)
	}
	return e
}

func TestNewVoyageEmbedderRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_VOYAGE_MISSING", "")
	if _, err := NewVoyageEmbedder("TEST_VOYAGE_MISSING", "voyage-2", "", 0, 0); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestVoyageModelDimensions(t *testing.T) {
	t.Setenv("TEST_VOYAGE_KEY", "test-key")

	tests := []struct {
		model string
		want  int
	}{
		{"voyage-2", 1024},
		{"voyage-3", 1024},
		{"voyage-large-2", 1536},
		{"voyage-code-2", 1536},
		{"voyage-3-lite", 512},
		{"unknown-model", 1024},
	}
	for _, tt := range tests {
		e, err := NewVoyageEmbedder("TEST_VOYAGE_KEY", tt.model, "", 0, 0)
		if err != nil {
			t.Fatalf("%s: %v", tt.model, err)
		}
		if e.Dimension() != tt.want {
			t.Errorf("%s: dimension = %d, want %d", tt.model, e.Dimension(), tt.want)
		}
	}

	// An explicit dimension wins over the model table.
	e, err := NewVoyageEmbedder("TEST_VOYAGE_KEY", "voyage-2", "", 256, 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 256 {
		t.Errorf("explicit dimension = %d, want 256", e.Dimension())
	}
}

func TestEmbedOneSendsInputType(t *testing.T) {
	var gotReq embeddingRequest
	var gotAuth string

	server := newVoyageTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{1, 2, 3}, Index: 0}},
		})
	})

	e := newTestEmbedder(t, server.URL, 0)

	vec, err := e.EmbedOne(context.Background(), "hello", port.EmbedModeQuery)
	if err != nil {
		t.Fatalf("EmbedOne failed: %v", err)
	}
	if !reflect.DeepEqual(vec, []float32{1, 2, 3}) {
		t.Errorf("unexpected vector %v", vec)
	}
	if gotReq.InputType != "query" {
		t.Errorf("input_type = %q, want %q", gotReq.InputType, "query")
	}
	if gotReq.Model != "voyage-2" {
		t.Errorf("model = %q, want voyage-2", gotReq.Model)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	server := newVoyageTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.InputType != "document" {
			t.Errorf("input_type = %q, want %q", req.InputType, "document")
		}
		// Respond with the entries out of order; Index drives placement.
		data := make([]embeddingData, len(req.Input))
		for i := range req.Input {
			data[len(req.Input)-1-i] = embeddingData{
				Embedding: []float32{float32(i), 0, 0},
				Index:     i,
			}
		}
		json.NewEncoder(w).Encode(embeddingResponse{Data: data})
	})

	e := newTestEmbedder(t, server.URL, 0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"}, port.EmbedModeDocument)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestEmbedBatchSplitsLargeInputs(t *testing.T) {
	var requests int
	server := newVoyageTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Input) > 2 {
			t.Errorf("sub-batch of %d exceeds batch size 2", len(req.Input))
		}
		data := make([]embeddingData, len(req.Input))
		for i := range req.Input {
			data[i] = embeddingData{Embedding: []float32{0, 0, 0}, Index: i}
		}
		json.NewEncoder(w).Encode(embeddingResponse{Data: data})
	})

	e := newTestEmbedder(t, server.URL, 2)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, port.EmbedModeDocument)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 5 {
		t.Errorf("expected 5 vectors, got %d", len(vecs))
	}
	if requests != 3 {
		t.Errorf("expected 3 requests, got %d", requests)
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	server := newVoyageTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{1, 2, 3}, Index: 0}},
		})
	})

	e := newTestEmbedder(t, server.URL, 0)

	_, err := e.EmbedBatch(context.Background(), []string{"a", "b"}, port.EmbedModeDocument)
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected ErrProvider for count mismatch, got %v", err)
	}
}

func TestEmbedRejectsEmptyText(t *testing.T) {
	e := newTestEmbedder(t, "http://unused.invalid", 0)

	if _, err := e.EmbedOne(context.Background(), "  ", port.EmbedModeQuery); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("EmbedOne: expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", ""}, port.EmbedModeDocument); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("EmbedBatch: expected ErrInvalidInput, got %v", err)
	}
}

func TestEmbedSurfacesAPIErrors(t *testing.T) {
	server := newVoyageTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	})

	e := newTestEmbedder(t, server.URL, 0)

	_, err := e.EmbedOne(context.Background(), "hello", port.EmbedModeQuery)
	if !errors.Is(err, domain.ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}
