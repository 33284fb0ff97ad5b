// Package llm defines the Provider interface for Large Language Model backends.
//
// A provider wraps a remote or local model API (Gemini, OpenAI, Anthropic,
// Ollama, ...) and exposes a single blocking completion call that the note
// assistant uses for its summarize, brainstorm and beautify actions.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// ErrTruncated is returned by providers that can tell a reply stopped at the
// token limit.
var ErrTruncated = errors.New("llm: reply truncated at the token limit")

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction placed before Messages. Providers
	// without a dedicated system field prepend it as a "system" message.
	SystemPrompt string

	// Messages is the ordered conversation. The note assistant sends a single
	// "user" message holding the full prompt.
	Messages []Message

	// Temperature in [0.0, 2.0]. Zero means the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int
}

// CompletionResponse is the full reply of a Complete call.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response. It
	// returns promptly with ctx.Err() when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata for the configured model.
	Capabilities() ModelCapabilities
}
