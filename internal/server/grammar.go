package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fluentia/fluentia/pkg/provider/llm"
)

const (
	grammarMaxTokens   = 200
	grammarTemperature = 0.3

	empathyMaxTokens   = 150
	empathyTemperature = 0.8

	// empathyFallback is used whenever the feedback model is unavailable;
	// the correction itself still goes out.
	empathyFallback = "Good effort! Keep practicing."
)

// empathyPromptFmt asks the chat model for one short encouraging line in the
// learner's language. 1: level, 2: user input, 3: language.
const empathyPromptFmt = `You are an empathetic language learning assistant.

Learner level: %[1]s
The learner wrote: "%[2]s"

Write one short encouraging sentence acknowledging their effort.
- Use warm, supportive language
- Match their level
- Respond ONLY in %[3]s`

// grammarRequest is the body of POST /grammar-correction.
type grammarRequest struct {
	UserInput string `json:"userInput"`
	Language  string `json:"language"`
	Scenario  string `json:"scenario"`
	Level     string `json:"level"`
}

// grammarResponse mirrors what the feedback card renders.
type grammarResponse struct {
	OriginalText    string `json:"originalText"`
	CorrectedText   string `json:"correctedText"`
	EmpathyFeedback string `json:"empathyFeedback"`
	HasCorrection   bool   `json:"hasCorrection"`
}

func (s *Server) handleGrammar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req grammarRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserInput == "" {
		s.writeError(w, http.StatusBadRequest, "userInput is required")
		return
	}

	cfg := s.cfg()
	if s.grammar == nil || cfg.Providers.Grammar.APIKey == "" {
		s.writeError(w, http.StatusInternalServerError, missingCredential(cfg.Providers.Grammar))
		return
	}

	resp, err := s.grammar.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: req.UserInput}},
		Temperature: grammarTemperature,
		MaxTokens:   grammarMaxTokens,
	})
	if err != nil {
		s.logger.Error("grammar correction failed", "error", err)
		s.metrics.RecordProviderError(ctx, cfg.Providers.Grammar.Name, "grammar")
		status, msg := providerFailure(err)
		s.writeError(w, status, msg)
		return
	}

	corrected := strings.TrimSpace(resp.Content)
	if corrected == "" {
		// An empty envelope means the model had nothing to offer; echoing
		// the input renders as "no correction needed".
		corrected = req.UserInput
	}

	s.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, grammarResponse{
		OriginalText:    req.UserInput,
		CorrectedText:   corrected,
		EmpathyFeedback: s.empathyLine(r, req),
		HasCorrection:   !strings.EqualFold(req.UserInput, corrected),
	})
}

// empathyLine asks the chat model for an encouraging sentence, falling back
// to the canned line on any failure.
func (s *Server) empathyLine(r *http.Request, req grammarRequest) string {
	if s.empathy == nil {
		return empathyFallback
	}

	level := req.Level
	if level == "" {
		level = "Intermediate"
	}
	prompt := fmt.Sprintf(empathyPromptFmt, level, req.UserInput, req.Language)

	resp, err := s.empathy.Complete(r.Context(), llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: empathyTemperature,
		MaxTokens:   empathyMaxTokens,
	})
	if err != nil {
		s.logger.Warn("empathy generation failed", "error", err)
		return empathyFallback
	}
	if line := strings.TrimSpace(resp.Content); line != "" {
		return line
	}
	return empathyFallback
}
