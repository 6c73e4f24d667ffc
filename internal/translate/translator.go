// Package translate provides the tap-a-word dictionary lookup behind
// /translate-word. Learners tap an unknown word in the assistant's reply and
// get a short gloss in their own language.
//
// Model output is conversational by nature, so the raw completion runs
// through a cleanup pipeline that strips quoting, boilerplate prefixes and
// trailing punctuation before it reaches the UI.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

const (
	translateTemperature = 0.3
	translateMaxTokens   = 64

	// Glosses longer than this are almost always explanations the model
	// was told not to write; only the first clause survives.
	maxGlossLen = 20
)

// singleCharPromptFmt is used for single CJK characters, which need the
// teacher framing to avoid the model glossing a multi-character compound
// instead. 1: source language, 2: character, 3: target language.
const singleCharPromptFmt = `You are a %[1]s language teacher.
Translate this single %[1]s character into %[3]s.

Character: "%[2]s"

Rules:
- Give ONLY the most common/basic meaning.
- Answer must be 1–3 words.
- No explanations, examples, or multiple meanings.
- Just the translation.

Your translation:`

// wordPromptFmt is the general word/phrase prompt. 1: source language,
// 2: word, 3: target language.
const wordPromptFmt = `Translate the following %[1]s word/phrase into %[3]s.
Rules:
- Provide the most common translation only.
- Keep answer to 1–3 words.
- No explanation, no examples.

%[1]s: "%[2]s"
%[3]s:`

var (
	surroundingQuotes = regexp.MustCompile("^[\"'`]|[\"'`]$")
	answerPrefix      = regexp.MustCompile(`(?i)^(Translation:|Answer:|Response:)\s*`)
	trailingPeriod    = regexp.MustCompile(`\.$`)
	clauseSplit       = regexp.MustCompile(`[,;.]`)
	cjkChar           = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)
)

// Translator performs word lookups against an [llm.Provider]. It is safe
// for concurrent use.
type Translator struct {
	llm    llm.Provider
	logger *slog.Logger
}

// New returns a Translator backed by the given provider.
func New(provider llm.Provider, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{llm: provider, logger: logger}
}

// Translate glosses word from sourceLanguage into targetLanguage.
func (t *Translator) Translate(ctx context.Context, word, sourceLanguage, targetLanguage string) (string, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return "", fmt.Errorf("translate: word must not be empty")
	}

	resp, err := t.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: translateTemperature,
		MaxTokens:   translateMaxTokens,
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(word, sourceLanguage, targetLanguage)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translate %q: %w", word, err)
	}

	gloss := Cleanup(resp.Content)
	if gloss == "" {
		return "", fmt.Errorf("translate %q: provider %s returned no usable gloss", word, t.llm.Name())
	}
	return gloss, nil
}

// buildPrompt picks the character prompt for single CJK characters and the
// word/phrase prompt for everything else.
func buildPrompt(word, sourceLanguage, targetLanguage string) string {
	if utf8.RuneCountInString(word) == 1 && cjkChar.MatchString(word) {
		return fmt.Sprintf(singleCharPromptFmt, sourceLanguage, word, targetLanguage)
	}
	return fmt.Sprintf(wordPromptFmt, sourceLanguage, word, targetLanguage)
}

// Cleanup normalizes a raw model completion into a short gloss: surrounding
// quotes, "Translation:"-style prefixes and a trailing period are stripped,
// and anything longer than a dictionary entry is cut at the first clause
// boundary.
func Cleanup(raw string) string {
	s := strings.TrimSpace(raw)
	s = surroundingQuotes.ReplaceAllString(s, "")
	s = answerPrefix.ReplaceAllString(s, "")
	s = trailingPeriod.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxGlossLen {
		if first := strings.TrimSpace(clauseSplit.Split(s, 2)[0]); first != "" {
			s = first
		}
	}
	return s
}
