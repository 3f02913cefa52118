package port

import "context"

// GenerateRequest carries one generation call's parameters. Zero values for
// MaxTokens and Temperature mean "use the provider's configured defaults".
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
}

// GenerationStream is a finite, non-restartable sequence of text fragments
// in generation order. Recv returns io.EOF after the final fragment. Close
// releases the underlying connection and is safe to call before the stream
// is drained; nothing keeps producing afterwards.
type GenerationStream interface {
	Recv() (string, error)
	Close() error
}

// LLM represents a language model for text generation.
type LLM interface {
	// Generate produces one complete response.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// GenerateStream produces the response incrementally. The caller must
	// Close the stream on every exit path.
	GenerateStream(ctx context.Context, req GenerateRequest) (GenerationStream, error)

	// ModelName returns the name of the model.
	ModelName() string
}
