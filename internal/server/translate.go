package server

import (
	"net/http"
	"time"
)

// translateRequest is the body of POST /translate-word.
type translateRequest struct {
	Word           string `json:"word"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req translateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Word == "" {
		s.writeError(w, http.StatusBadRequest, "word is required")
		return
	}

	cfg := s.cfg()
	if s.translator == nil || cfg.Providers.Chat.APIKey == "" {
		s.writeError(w, http.StatusInternalServerError, missingCredential(cfg.Providers.Chat))
		return
	}

	gloss, err := s.translator.Translate(ctx, req.Word, req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		s.logger.Error("translation failed", "word", req.Word, "error", err)
		status, msg := providerFailure(err)
		s.writeError(w, status, msg)
		return
	}

	s.metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())

	s.writeJSON(w, http.StatusOK, map[string]string{"translation": gloss})
}
