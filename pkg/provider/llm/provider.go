// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., a local Ollama
// instance, an OpenAI-compatible server, or a hosted API) and exposes a
// uniform blocking completion interface for the transcript formatter without
// coupling it to any specific SDK.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly — the formatter runs every call under a hard timeout.
package llm

import (
	"context"

	"github.com/MrWong99/kikitori/pkg/types"
)

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages
	// and system prompt.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. For transcript formatting this
	// is a single user message carrying the raw transcript.
	Messages []types.Message

	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot should prepend
	// it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Formatting
	// wants low values; 0 means use the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled before the
	// completion arrives.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata about the configured model. The
	// result is assumed constant for the lifetime of the Provider instance.
	Capabilities() types.ModelCapabilities
}
