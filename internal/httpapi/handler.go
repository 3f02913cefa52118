// Package httpapi exposes the RAG service over HTTP. Routing and request
// validation live here; auth, rate limiting, and document persistence are
// outer layers that sit in front of this API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"ragstack/internal/domain"
	"ragstack/internal/port"
	"ragstack/internal/usecase"
)

// Bounds accepted by the query endpoint.
const (
	maxTopK           = 20
	minTopK           = 1
	minScoreThreshold = 0.0
	maxScoreThreshold = 1.0
)

type Handler struct {
	rag            *usecase.RAGService
	requestTimeout time.Duration
}

func NewHandler(rag *usecase.RAGService, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Handler{rag: rag, requestTimeout: requestTimeout}
}

// QueryRequest is the query endpoint payload. TopK and ScoreThreshold are
// optional; nil means the service defaults.
type QueryRequest struct {
	Query          string   `json:"query"`
	TopK           *int     `json:"top_k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
}

// GenerateRequest is the retrieval-free generation payload.
type GenerateRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// IngestRequest is the document ingestion payload. Each document needs a
// "text" field; every other field is carried through as metadata.
type IngestRequest struct {
	Documents []map[string]any `json:"documents"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	in := usecase.QueryInput{
		Query:          req.Query,
		TopK:           usecase.DefaultTopK,
		ScoreThreshold: usecase.DefaultScoreThreshold,
		SystemPrompt:   req.SystemPrompt,
	}
	if req.TopK != nil {
		if *req.TopK < minTopK || *req.TopK > maxTopK {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be between %d and %d", minTopK, maxTopK))
			return
		}
		in.TopK = *req.TopK
	}
	if req.ScoreThreshold != nil {
		if *req.ScoreThreshold < minScoreThreshold || *req.ScoreThreshold > maxScoreThreshold {
			writeError(w, http.StatusBadRequest, "score_threshold must be between 0.0 and 1.0")
			return
		}
		in.ScoreThreshold = *req.ScoreThreshold
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	result, err := h.rag.Query(ctx, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	response, err := h.rag.Generate(ctx, port.GenerateRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": response})
}

func (h *Handler) GenerateStream(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := h.rag.GenerateStream(r.Context(), port.GenerateRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}
		if err != nil {
			// Headers are out; the best we can do is log and stop. The
			// missing [DONE] tells the client the stream was cut short.
			log.Printf("httpapi: stream aborted: %v", err)
			return
		}

		data, _ := json.Marshal(map[string]string{"content": fragment})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "documents is required")
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	for i, fields := range req.Documents {
		text, _ := fields[domain.MetadataTextKey].(string)
		if text == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("document %d is missing text", i))
			return
		}
		metadata := make(map[string]any, len(fields))
		for k, v := range fields {
			if k != domain.MetadataTextKey {
				metadata[k] = v
			}
		}
		docs[i] = domain.Document{Text: text, Metadata: metadata}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	ids, err := h.rag.Ingest(ctx, docs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ids": ids})
}

func (h *Handler) DeleteVector(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	found, err := h.rag.DeleteVector(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"found": found})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the error taxonomy onto HTTP statuses: contract
// violations are the caller's fault, backend/provider failures are upstream.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBackend), errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
