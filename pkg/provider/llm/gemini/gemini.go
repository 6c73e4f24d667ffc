// Package gemini provides an llm.Provider backed by the Google Gemini API
// via google.golang.org/genai. Gemini's multi-turn envelope differs from the
// OpenAI shape: assistant turns carry the role "model", the system
// instruction travels outside the content list, and the reply text lives at
// candidates[0].content.parts[0].text — all normalized here.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

// defaultModel is the fast conversational Gemini variant.
const defaultModel = "gemini-2.0-flash"

// Option is a functional option for Provider.
type Option func(*Provider)

// WithModel selects the Gemini model ID (e.g., "gemini-2.0-flash").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// Provider implements llm.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	model  string
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// New constructs a Gemini-backed Provider. apiKey must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	p := &Provider{client: client, model: defaultModel}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "gemini" }

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	contents, cfg := buildRequest(req)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		var apierr genai.APIError
		if errors.As(err, &apierr) {
			return nil, &llm.ProviderError{
				Provider: p.Name(),
				Status:   apierr.Code,
				Body:     apierr.Message,
			}
		}
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}

	// Safety blocks and empty candidate lists yield an empty envelope rather
	// than an error; callers substitute their own fallback text.
	return &llm.CompletionResponse{Content: strings.TrimSpace(resp.Text())}, nil
}

// buildRequest maps the normalized request onto Gemini's content list.
// System text becomes the SystemInstruction; when the history itself starts
// with a system-role message, that text is likewise hoisted out of the turn
// list because Gemini rejects a "system" content role.
func buildRequest(req llm.CompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	system := req.SystemPrompt

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	// Gemini requires at least one content entry; degrade a system-only
	// request into a single user turn so the call remains well-formed.
	if len(contents) == 0 && system != "" {
		contents = append(contents, genai.NewContentFromText(system, genai.RoleUser))
		cfg.SystemInstruction = nil
	}

	return contents, cfg
}
