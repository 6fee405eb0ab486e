// Package types defines the shared types used across all Kikitori packages.
//
// These types form the lingua franca between the capture layer, the speech
// recogniser, the LLM formatter, and the pipeline coordinator. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

// Message is a single chat message exchanged with an LLM backend.
type Message struct {
	// Role is the speaker role: "system", "user", or "assistant".
	Role string

	// Content is the plain-text message body.
	Content string
}

// ModelCapabilities describes static properties of an LLM provider's model.
// The values are assumed constant for the lifetime of a provider instance.
type ModelCapabilities struct {
	// SupportsStreaming reports whether the backend can stream tokens.
	// Kikitori only uses blocking completions, but the flag is surfaced so
	// callers can log what the configured model offers.
	SupportsStreaming bool

	// ContextWindow is the model's context size in tokens.
	ContextWindow int

	// MaxOutputTokens is the largest completion the model can produce.
	MaxOutputTokens int
}
