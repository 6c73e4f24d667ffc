// Package llm defines the Provider interface for text-generation backends.
//
// A provider wraps a remote chat or instruction-completion API (e.g., a
// Llama-class model behind Groq's OpenAI-compatible endpoint, Google Gemini,
// or the HuggingFace Inference API) and exposes a uniform interface so the
// conversation orchestrator never couples to a specific SDK or response
// envelope. Each backend locates the assistant text differently
// (choices[0].message.content, candidates[0].content.parts[0].text,
// [0].generated_text); implementations normalize all of that into
// CompletionResponse.Content.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Message is a single entry in the conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`
}

// CompletionRequest carries everything a backend needs to produce a reply.
// Messages must be non-empty; a zero-value request is invalid.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically user-authored and drives the response. Providers never
	// reorder it.
	Messages []Message

	// SystemPrompt is a high-priority instruction injected before the
	// history. Backends without a first-class system role fold it into the
	// first turn.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means use the
	// provider default.
	MaxTokens int
}

// CompletionResponse is the normalized reply from any backend.
type CompletionResponse struct {
	// Content is the assistant text, trimmed of outer whitespace. It is ""
	// (with a nil error) when the backend returned a well-formed but empty
	// envelope, so callers can apply a language-appropriate fallback rather
	// than failing the turn.
	Content string
}

// Provider is the abstraction over any text-generation backend. The active
// variant is selected via configuration at process start, never per call.
type Provider interface {
	// Complete sends req to the backend and waits for the full reply.
	// Transport and non-2xx failures are returned as errors; empty envelopes
	// are not (see CompletionResponse.Content).
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name identifies the backend variant ("groq", "gemini", ...) for logs
	// and metrics.
	Name() string
}

// ProviderError is returned when a backend responds with a non-2xx status.
// The orchestration layer classifies it: 429 is retryable by the caller,
// 402 means the upstream quota is exhausted, everything else is a generic
// upstream failure.
type ProviderError struct {
	// Provider is the backend variant name.
	Provider string

	// Status is the upstream HTTP status code.
	Status int

	// Body is the raw upstream response body, for diagnostics.
	Body string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Body)
}

// RateLimited reports whether the upstream rejected the call with 429.
func (e *ProviderError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// QuotaExhausted reports whether the upstream rejected the call with 402.
func (e *ProviderError) QuotaExhausted() bool {
	return e.Status == http.StatusPaymentRequired
}
