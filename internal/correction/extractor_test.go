package correction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fluentia/fluentia/pkg/provider/llm"
	llmmock "github.com/fluentia/fluentia/pkg/provider/llm/mock"
)

func strptr(s string) *string { return &s }

func TestExtract_ParsesCleanJSON(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"userSaid":"yo quiero un café","shouldSay":"Me gustaría un café","corrections":[{"wrong":"yo quiero","correct":"Me gustaría","explanation":"politeness"}]}`,
		},
	}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "yo quiero un café", Session{Language: "Spanish"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result == nil {
		t.Fatal("expected a correction result")
	}
	if result.UserSaid != "yo quiero un café" {
		t.Errorf("unexpected userSaid %q", result.UserSaid)
	}
	if result.ShouldSay == nil || *result.ShouldSay != "Me gustaría un café" {
		t.Errorf("unexpected shouldSay %v", result.ShouldSay)
	}
	if len(result.Corrections) != 1 || result.Corrections[0].Wrong != "yo quiero" {
		t.Errorf("unexpected corrections %+v", result.Corrections)
	}
}

func TestExtract_ScansJSONOutOfProse(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "Sure! Here is the analysis:\n```json\n" +
				`{"userSaid":"je veux","shouldSay":"je voudrais","corrections":[{"wrong":"je veux","correct":"je voudrais","explanation":"politeness"}]}` +
				"\n```\nHope that helps!",
		},
	}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "je veux", Session{Language: "French"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result == nil {
		t.Fatal("expected a correction result despite surrounding prose")
	}
	if result.ShouldSay == nil || *result.ShouldSay != "je voudrais" {
		t.Errorf("unexpected shouldSay %v", result.ShouldSay)
	}
}

func TestExtract_UnparseableIsNoCorrection(t *testing.T) {
	t.Parallel()

	for name, content := range map[string]string{
		"no json":      "The sentence looks fine to me!",
		"broken json":  `{"userSaid": "x", "corrections": [`,
		"empty output": "",
	} {
		provider := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: content},
		}
		e := NewExtractor(provider, nil)

		result, err := e.Extract(context.Background(), "hola", Session{Language: "Spanish"})
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
		if result != nil {
			t.Errorf("%s: expected nil result, got %+v", name, result)
		}
	}
}

func TestExtract_EmptyShapedObjectIsNil(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"userSaid":"hola","shouldSay":null,"corrections":[]}`,
		},
	}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "hola", Session{Language: "Spanish"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result != nil {
		t.Errorf("shouldSay null with empty corrections must collapse to nil, got %+v", result)
	}
}

func TestExtract_LiteralNullShouldSay(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"userSaid":"hola","shouldSay":"null","corrections":[]}`,
		},
	}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "hola", Session{Language: "Spanish"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result != nil {
		t.Errorf("literal \"null\" shouldSay must collapse to nil, got %+v", result)
	}
}

func TestExtract_DropsNoOpItems(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"userSaid":"hola","shouldSay":"Hola, ¿qué tal?","corrections":[
				{"wrong":"hola","correct":"Hola","explanation":"case only"},
				{"wrong":"","correct":"x","explanation":"empty wrong"},
				{"wrong":"que tal","correct":"qué tal","explanation":"accent"}]}`,
		},
	}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "hola que tal", Session{Language: "Spanish"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if len(result.Corrections) != 1 {
		t.Fatalf("expected only the accent fix to survive, got %+v", result.Corrections)
	}
	if result.Corrections[0].Correct != "qué tal" {
		t.Errorf("unexpected surviving item %+v", result.Corrections[0])
	}
}

func TestExtract_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := &llm.ProviderError{Provider: "groq", Status: 429, Body: "rate limited"}
	provider := &llmmock.Provider{CompleteErr: wantErr}
	e := NewExtractor(provider, nil)

	_, err := e.Extract(context.Background(), "hola", Session{Language: "Spanish"})
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !perr.RateLimited() {
		t.Errorf("expected rate-limited classification, got %+v", perr)
	}
}

func TestExtract_BlankUtteranceSkipsProvider(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	e := NewExtractor(provider, nil)

	result, err := e.Extract(context.Background(), "   ", Session{Language: "Spanish"})
	if err != nil || result != nil {
		t.Errorf("expected (nil, nil) for blank utterance, got (%+v, %v)", result, err)
	}
	if len(provider.CompleteCalls) != 0 {
		t.Errorf("provider must not be called for blank utterances")
	}
}

func TestExtract_PromptShape(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "{}"},
	}
	e := NewExtractor(provider, nil)

	_, _ = e.Extract(context.Background(), "wo yao kafei", Session{
		Language: "Mandarin",
		Level:    "Beginner",
		Scenario: "Ordering at a café",
	})

	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(provider.CompleteCalls))
	}
	req := provider.CompleteCalls[0].Req
	if req.Temperature != extractTemperature {
		t.Errorf("expected temperature %v, got %v", extractTemperature, req.Temperature)
	}
	if req.MaxTokens != extractMaxTokens {
		t.Errorf("expected max tokens %d, got %d", extractMaxTokens, req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", req.Messages)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"Mandarin language teacher",
		`"wo yao kafei"`,
		"Return ONLY this JSON",
		"Beginner",
		"Ordering at a café",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestNormalize_KeepsShouldSayOnlyResult(t *testing.T) {
	t.Parallel()

	r := &Result{UserSaid: "hola", ShouldSay: strptr("Hola, ¿qué tal?")}
	if got := r.normalize(); got == nil {
		t.Error("a rephrasing with no item-level fixes is still actionable")
	}
}
