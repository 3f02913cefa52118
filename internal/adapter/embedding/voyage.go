package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"ragstack/internal/domain"
	"ragstack/internal/port"
)

// VoyageEmbedder generates embeddings through the Voyage AI REST API. Every
// call is tagged with an input type ("document" or "query"); the two modes
// are not interchangeable in similarity scoring. Nothing is cached locally.
type VoyageEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	batchSize int
	client    *http.Client
}

type embeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

const defaultVoyageURL = "https://api.voyageai.com/v1"

// NewVoyageEmbedder creates a Voyage embedder. The API key is read from the
// named environment variable. A zero dimension falls back to the model's
// known dimension; a zero batchSize uses 100.
func NewVoyageEmbedder(apiKeyEnv, model, baseURL string, dimension, batchSize int) (*VoyageEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = defaultVoyageURL
	}

	if dimension == 0 {
		dimension = 1024
		switch model {
		case "voyage-2", "voyage-3":
			dimension = 1024
		case "voyage-large-2", "voyage-code-2":
			dimension = 1536
		case "voyage-3-lite":
			dimension = 512
		}
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &VoyageEmbedder{
		apiKey:    apiKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		batchSize: batchSize,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// EmbedOne generates an embedding for a single text.
func (e *VoyageEmbedder) EmbedOne(ctx context.Context, text string, mode port.EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text for embedding", domain.ErrInvalidInput)
	}

	embeddings, err := e.embedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for the given texts in order. The remote
// API caps request sizes, so large inputs are sent in sub-batches; any
// sub-batch failure fails the whole call with nothing surfaced.
func (e *VoyageEmbedder) EmbedBatch(ctx context.Context, texts []string, mode port.EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", domain.ErrInvalidInput, i)
		}
	}

	var allEmbeddings [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.embedBatch(ctx, texts[i:end], mode)
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

func (e *VoyageEmbedder) embedBatch(ctx context.Context, texts []string, mode port.EmbedMode) ([][]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{
		Input:     texts,
		Model:     e.model,
		InputType: string(mode),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request failed: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrProvider, err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("%w: API error: %s", domain.ErrProvider, embResp.Error.Message)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: sent %d texts, got %d vectors",
			domain.ErrProvider, len(texts), len(embResp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", domain.ErrProvider, data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: missing embedding for input %d", domain.ErrProvider, i)
		}
	}

	return embeddings, nil
}

// Dimension returns the embedding vector dimension.
func (e *VoyageEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *VoyageEmbedder) ModelName() string {
	return e.model
}

var _ port.Embedder = (*VoyageEmbedder)(nil)
