package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

func contentText(c *genai.Content) string {
	if c == nil || len(c.Parts) == 0 {
		return ""
	}
	return c.Parts[0].Text
}

// ---- buildRequest ----

func TestBuildRequest_RoleMapping(t *testing.T) {
	contents, _ := buildRequest(llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "user", Content: "Hola"},
			{Role: "assistant", Content: "¡Hola!"},
			{Role: "user", Content: "¿Cómo estás?"},
		},
	})

	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	wantRoles := []genai.Role{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	for i, want := range wantRoles {
		if genai.Role(contents[i].Role) != want {
			t.Errorf("content %d: expected role %q, got %q", i, want, contents[i].Role)
		}
	}
	if contentText(contents[1]) != "¡Hola!" {
		t.Errorf("expected assistant text preserved, got %q", contentText(contents[1]))
	}
}

func TestBuildRequest_SystemPromptBecomesInstruction(t *testing.T) {
	contents, cfg := buildRequest(llm.CompletionRequest{
		SystemPrompt: "You are a native Spanish speaker.",
		Messages:     []llm.Message{{Role: "user", Content: "Hola"}},
	})

	if cfg.SystemInstruction == nil {
		t.Fatal("expected SystemInstruction to be set")
	}
	if contentText(cfg.SystemInstruction) != "You are a native Spanish speaker." {
		t.Errorf("unexpected system instruction %q", contentText(cfg.SystemInstruction))
	}
	// The system text must not leak into the turn list.
	if len(contents) != 1 || genai.Role(contents[0].Role) != genai.RoleUser {
		t.Errorf("expected a single user turn, got %d contents", len(contents))
	}
}

func TestBuildRequest_SystemRoleMessageHoisted(t *testing.T) {
	contents, cfg := buildRequest(llm.CompletionRequest{
		SystemPrompt: "Persona.",
		Messages: []llm.Message{
			{Role: "system", Content: "Stay in scenario."},
			{Role: "user", Content: "Hola"},
		},
	})

	if got := contentText(cfg.SystemInstruction); got != "Persona.\n\nStay in scenario." {
		t.Errorf("expected system-role text appended to the instruction, got %q", got)
	}
	if len(contents) != 1 {
		t.Fatalf("system-role message must not appear as a turn, got %d contents", len(contents))
	}
}

func TestBuildRequest_SystemOnlyDegradesToUserTurn(t *testing.T) {
	contents, cfg := buildRequest(llm.CompletionRequest{
		SystemPrompt: "Translate the word.",
	})

	if cfg.SystemInstruction != nil {
		t.Error("system-only request must not keep a SystemInstruction")
	}
	if len(contents) != 1 || genai.Role(contents[0].Role) != genai.RoleUser {
		t.Fatalf("expected a single user turn, got %d contents", len(contents))
	}
	if contentText(contents[0]) != "Translate the word." {
		t.Errorf("expected system text as the user turn, got %q", contentText(contents[0]))
	}
}

func TestBuildRequest_GenerationParameters(t *testing.T) {
	_, cfg := buildRequest(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "Hola"}},
		Temperature: 0.9,
		MaxTokens:   1024,
	})

	if cfg.Temperature == nil || *cfg.Temperature != 0.9 {
		t.Errorf("expected temperature 0.9, got %v", cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 1024 {
		t.Errorf("expected max output tokens 1024, got %d", cfg.MaxOutputTokens)
	}
}

func TestBuildRequest_ZeroParametersOmitted(t *testing.T) {
	_, cfg := buildRequest(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "Hola"}},
	})

	if cfg.Temperature != nil {
		t.Errorf("zero temperature must be omitted, got %v", *cfg.Temperature)
	}
	if cfg.MaxOutputTokens != 0 {
		t.Errorf("zero max tokens must be omitted, got %d", cfg.MaxOutputTokens)
	}
}
