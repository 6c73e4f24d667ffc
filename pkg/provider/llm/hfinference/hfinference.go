// Package hfinference provides an llm.Provider backed by the HuggingFace
// Inference API, used for fine-tuned instruction models such as dedicated
// grammar correctors. The envelope is a bare JSON array: [0].generated_text.
//
// There is no HuggingFace SDK for Go, so this speaks the REST API directly.
package hfinference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

const (
	// endpointFmt is the hosted inference endpoint for a given model repo.
	endpointFmt = "https://api-inference.huggingface.co/models/%s"

	defaultTimeout = 60 * time.Second
)

// Option is a functional option for Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client, mainly for tests pointing at an
// httptest server.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the full inference URL (default: the hosted
// endpoint for the configured model).
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// Provider implements llm.Provider against a HuggingFace inference endpoint.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// New constructs a Provider for the given model repo (e.g.,
// "sylviali/eracond_llama_2_grammar"). apiKey and model must be non-empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("hfinference: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("hfinference: model must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      model,
		endpoint:   fmt.Sprintf(endpointFmt, model),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements llm.Provider.
func (p *Provider) Name() string { return "hfinference" }

// inferenceRequest is the wire request for text-generation inference.
type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
}

// inferenceParameters mirrors the subset of generation parameters we use.
type inferenceParameters struct {
	MaxLength      int     `json:"max_length,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	DoSample       bool    `json:"do_sample"`
	ReturnFullText bool    `json:"return_full_text"`
}

// generated is one element of the response array.
type generated struct {
	GeneratedText string `json:"generated_text"`
}

// Complete implements llm.Provider. The instruction-completion API has no
// chat structure: the system prompt and messages are flattened into a single
// input string, newest last.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs: flatten(req),
		Parameters: inferenceParameters{
			MaxLength:      req.MaxTokens,
			Temperature:    req.Temperature,
			DoSample:       req.Temperature > 0,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("hfinference: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hfinference: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("hfinference: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hfinference: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.ProviderError{
			Provider: p.Name(),
			Status:   resp.StatusCode,
			Body:     string(raw),
		}
	}

	var out []generated
	if err := json.Unmarshal(raw, &out); err != nil {
		// A 2xx body that is not the expected array counts as an empty
		// envelope; the caller applies its own fallback text.
		return &llm.CompletionResponse{}, nil
	}
	if len(out) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	return &llm.CompletionResponse{Content: strings.TrimSpace(out[0].GeneratedText)}, nil
}

// flatten joins the system prompt and message contents into the single input
// string the inference API expects.
func flatten(req llm.CompletionRequest) string {
	var sb strings.Builder
	if req.SystemPrompt != "" {
		sb.WriteString(req.SystemPrompt)
		sb.WriteString("\n\n")
	}
	for i, m := range req.Messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}
