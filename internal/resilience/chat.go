package resilience

import (
	"context"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

// ChatFallback implements [llm.Provider] with automatic failover across
// multiple chat backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
//
// The wrapped chain is transparent to callers: error classification such as
// llm.ProviderError inspection still works because the last backend's error
// is preserved in the wrap chain.
type ChatFallback struct {
	chain *Chain[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*ChatFallback)(nil)

// NewChatFallback creates a [ChatFallback] with primary as the preferred
// backend.
func NewChatFallback(primary llm.Provider, cfg ChainConfig) *ChatFallback {
	return &ChatFallback{
		chain: NewChain(primary.Name(), primary, cfg),
	}
}

// Add registers an additional chat provider as a fallback.
func (f *ChatFallback) Add(provider llm.Provider) {
	f.chain.Add(provider.Name(), provider)
}

// Name implements llm.Provider. It reports the primary's name; which backend
// actually served a given request is visible in the failover logs.
func (f *ChatFallback) Name() string {
	return f.chain.Primary().Name()
}

// Complete sends the request to the first healthy provider and returns its
// response. If the primary fails, subsequent fallbacks are tried in order.
func (f *ChatFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Run(ctx, f.chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
