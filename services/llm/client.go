package llm

import "context"

// GenerationParams carries optional sampling parameters for a generation
// call. Nil pointer fields mean "use the backend's default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend.
//
// Generate submits a single prompt and returns the model's text reply.
// Implementations must respect ctx cancellation and return a distinguishable
// error on failure or timeout; they never return an empty string with a nil
// error.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
