package correction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

const (
	// Correction analysis wants determinism, not creativity.
	extractTemperature = 0.2
	extractMaxTokens   = 512
)

// promptTemplate instructs the model to return only the JSON result shape.
// The 1: language, 2: utterance.
const promptTemplate = `You are a %s language teacher.
Analyze this learner message: "%s"

Return ONLY this JSON (no other text):

{
  "userSaid": "...",
  "shouldSay": "... or null",
  "corrections": [
    { "wrong": "...", "correct": "...", "explanation": "..." }
  ]
}`

// Session carries the conversation context the extractor tailors its
// analysis to.
type Session struct {
	// Language is the language being practised (e.g., "Spanish").
	Language string

	// Level is the learner's proficiency (e.g., "Beginner"). Optional.
	Level string

	// Scenario is the roleplay setting (e.g., "Ordering at a café").
	// Optional.
	Scenario string
}

// Extractor asks an [llm.Provider] for structured feedback on a learner
// utterance. It is safe for concurrent use.
type Extractor struct {
	llm    llm.Provider
	logger *slog.Logger
}

// NewExtractor returns an [Extractor] backed by the given provider.
func NewExtractor(provider llm.Provider, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{llm: provider, logger: logger}
}

// Extract analyses utterance and returns the structured correction, or nil
// when there is nothing to correct.
//
// Parse failures and empty-shaped results are the normal "no correction"
// outcome and return (nil, nil). Provider and context errors are returned so
// the caller can decide whether to log and continue; callers on the
// conversation path swallow them.
func (e *Extractor) Extract(ctx context.Context, utterance string, sess Session) (*Result, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, nil
	}

	req := llm.CompletionRequest{
		Temperature: extractTemperature,
		MaxTokens:   extractMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: e.buildPrompt(utterance, sess)},
		},
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("correction extract: %w", err)
	}

	result, ok := parseResult(resp.Content, utterance)
	if !ok {
		e.logger.Debug("correction response unparseable, treating as no correction",
			"provider", e.llm.Name())
		return nil, nil
	}
	return result.normalize(), nil
}

// buildPrompt formats the instruction prompt. Level and scenario, when set,
// are appended so the model judges naturalness against the right register.
func (e *Extractor) buildPrompt(utterance string, sess Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, promptTemplate, sess.Language, utterance)
	if sess.Level != "" {
		fmt.Fprintf(&sb, "\n\nThe learner's level is %s; only flag mistakes at or below that level.", sess.Level)
	}
	if sess.Scenario != "" {
		fmt.Fprintf(&sb, "\nThe conversation scenario is: %s.", sess.Scenario)
	}
	return sb.String()
}

// parseResult scans content for an embedded JSON object and unmarshals it.
// Models wrap the payload in prose or code fences often enough that the scan
// is greedy: everything from the first '{' to the last '}'.
func parseResult(content, utterance string) (*Result, bool) {
	raw, ok := scanJSONObject(content)
	if !ok {
		return nil, false
	}

	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, false
	}
	if r.UserSaid == "" {
		r.UserSaid = utterance
	}
	return &r, true
}

// scanJSONObject returns the substring from the first '{' to the last '}'.
func scanJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}
