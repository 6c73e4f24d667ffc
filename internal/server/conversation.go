package server

import (
	"context"
	"net/http"
	"time"

	"github.com/fluentia/fluentia/internal/archive"
	"github.com/fluentia/fluentia/internal/conversation"
	"github.com/fluentia/fluentia/internal/correction"
	"github.com/fluentia/fluentia/internal/observe"
	"github.com/fluentia/fluentia/pkg/provider/llm"
)

// conversationRequest is the body of POST /language-conversation.
type conversationRequest struct {
	Messages        []llm.Message             `json:"messages"`
	Language        string                    `json:"language"`
	Scenario        string                    `json:"scenario"`
	Level           string                    `json:"level"`
	FeedbackMode    conversation.FeedbackMode `json:"feedbackMode"`
	ProvideFeedback bool                      `json:"provideFeedback"`

	// SessionID is optional; when present, both sides of the turn are
	// archived under it.
	SessionID string `json:"sessionId"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		s.writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}
	if req.Language == "" {
		s.writeError(w, http.StatusBadRequest, "language is required")
		return
	}

	cfg := s.cfg()
	if s.orch == nil || cfg.Providers.Chat.APIKey == "" {
		s.writeError(w, http.StatusInternalServerError, missingCredential(cfg.Providers.Chat))
		return
	}

	sctx := conversation.SessionContext{
		Language:     req.Language,
		Scenario:     req.Scenario,
		Level:        req.Level,
		FeedbackMode: req.FeedbackMode,
	}

	resp, err := s.orch.NextTurn(ctx, req.Messages, sctx, req.ProvideFeedback)
	if err != nil {
		s.logger.Error("conversation turn failed", "language", req.Language, "error", err)
		s.metrics.RecordProviderError(ctx, s.orch.ChatName(), "chat")
		status, msg := providerFailure(err)
		s.writeError(w, status, msg)
		return
	}

	correctionSource := "llm"
	feedbackOn := req.FeedbackMode == "" || req.FeedbackMode == conversation.FeedbackOn
	if resp.Corrections == nil && req.ProvideFeedback && feedbackOn {
		// Degraded mode: the rule table keeps the feedback card populated
		// when the extractor came back empty.
		last := req.Messages[len(req.Messages)-1]
		if last.Role == "user" {
			resp.Corrections = correction.TryLocal(last.Content, req.Language)
			correctionSource = "local"
		}
	}

	s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds(),
		observe.WithAttrs(observe.Attr("language", req.Language)))
	if resp.Corrections != nil {
		s.metrics.RecordCorrection(ctx, req.Language, correctionSource)
	}

	s.archiveTurn(req, resp)

	s.writeJSON(w, http.StatusOK, resp)
}

// archiveTurn records the learner's last message and the assistant's reply.
// Failures are logged and dropped; archiving never fails a turn.
func (s *Server) archiveTurn(req conversationRequest, resp *conversation.TurnResponse) {
	if req.SessionID == "" {
		return
	}

	// The request context ends with the response; give the writes their own
	// deadline instead.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	last := req.Messages[len(req.Messages)-1]
	if last.Role == "user" {
		err := s.store.RecordTurn(ctx, archive.Turn{
			SessionID:  req.SessionID,
			Role:       "user",
			Content:    last.Content,
			Language:   req.Language,
			Scenario:   req.Scenario,
			Level:      req.Level,
			Correction: resp.Corrections,
			CreatedAt:  now,
		})
		if err != nil {
			s.logger.Warn("archive user turn failed", "session", req.SessionID, "error", err)
		}
	}

	err := s.store.RecordTurn(ctx, archive.Turn{
		SessionID: req.SessionID,
		Role:      "assistant",
		Content:   resp.Message,
		Language:  req.Language,
		Scenario:  req.Scenario,
		Level:     req.Level,
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("archive assistant turn failed", "session", req.SessionID, "error", err)
	}
}
