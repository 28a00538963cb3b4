// File: internal/llmclient/client.go
// Description: The minimal LLM surface the rest of the pipeline depends on.
// Resolution only ever needs one call: prompts in, free-form text out.
package llmclient

import "context"

// GenerationRequest carries one prompt pair to the model.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
}

// Client is implemented by every provider backend.
type Client interface {
	GenerateResponse(ctx context.Context, req GenerationRequest) (string, error)
}
