// Package llm provides generation-provider adapters. The Cerebras client
// speaks the OpenAI-compatible chat completions API, in both one-shot and
// streaming form.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ragstack/internal/domain"
	"ragstack/internal/port"
)

const defaultCerebrasURL = "https://api.cerebras.ai/v1"

// CerebrasClient generates text through an OpenAI-compatible chat
// completions endpoint. Failures are surfaced as provider errors; no retries
// happen here.
type CerebrasClient struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewCerebrasClient creates a Cerebras client. The API key is read from the
// named environment variable. maxTokens and temperature are the defaults
// applied when a request leaves them unset.
func NewCerebrasClient(apiKeyEnv, model, baseURL string, maxTokens int, temperature float64) (*CerebrasClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if baseURL == "" {
		baseURL = defaultCerebrasURL
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &CerebrasClient{
		apiKey:      apiKey,
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxTokens:   maxTokens,
		temperature: temperature,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func (c *CerebrasClient) buildRequest(req port.GenerateRequest, stream bool) chatRequest {
	var messages []chatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}

func (c *CerebrasClient) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: generation request failed: %v", domain.ErrProvider, err)
	}
	return resp, nil
}

// Generate produces one complete response.
func (c *CerebrasClient) Generate(ctx context.Context, req port.GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	resp, err := c.post(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", domain.ErrProvider, err)
	}
	if chat.Error != nil {
		return "", fmt.Errorf("%w: API error: %s", domain.ErrProvider, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", domain.ErrProvider)
	}

	return chat.Choices[0].Message.Content, nil
}

// GenerateStream produces the response as server-sent fragments. The caller
// owns the stream and must Close it on every exit path.
func (c *CerebrasClient) GenerateStream(ctx context.Context, req port.GenerateRequest) (port.GenerationStream, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", domain.ErrInvalidInput)
	}

	resp, err := c.post(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &sseStream{body: resp.Body, scanner: scanner}, nil
}

// ModelName returns the name of the model.
func (c *CerebrasClient) ModelName() string {
	return c.model
}

var _ port.LLM = (*CerebrasClient)(nil)

// sseStream reads "data:" lines from a server-sent-events body and yields
// the delta content of each chunk. Recv returns io.EOF on the [DONE]
// terminator or when the body ends.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  sync.Once
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("%w: parse stream chunk: %v", domain.ErrProvider, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
		// Empty delta, e.g. the final chunk carrying only finish_reason.
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: read stream: %v", domain.ErrProvider, err)
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	var err error
	s.closed.Do(func() {
		err = s.body.Close()
	})
	return err
}

var _ port.GenerationStream = (*sseStream)(nil)
