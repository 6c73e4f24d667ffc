package server

import (
	"net/http"
	"time"

	"github.com/fluentia/fluentia/pkg/provider/tts"
)

// speechRequest is the body of POST /text-to-speech.
type speechRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Dialect  string `json:"dialect"`
}

// browserTTSResponse tells the client to synthesize locally.
type browserTTSResponse struct {
	UseBrowserTTS bool   `json:"useBrowserTTS"`
	Text          string `json:"text"`
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req speechRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := s.cfg()

	// No premium synthesis available: hand the text back and let the client
	// use the browser speech API. The client branches on Content-Type.
	if !cfg.Speech.Enabled || s.speech == nil || cfg.Providers.Speech.APIKey == "" {
		s.writeJSON(w, http.StatusOK, browserTTSResponse{UseBrowserTTS: true, Text: req.Text})
		return
	}

	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	voiceID := cfg.Speech.VoiceFor(req.Language, req.Dialect)
	s.logger.Debug("synthesizing speech",
		"language", req.Language, "dialect", req.Dialect, "voice", voiceID)

	start := time.Now()
	clip, contentType, err := s.speech.Synthesize(ctx, req.Text, tts.VoiceProfile{ID: voiceID})
	if err != nil {
		s.logger.Error("speech synthesis failed", "voice", voiceID, "error", err)
		s.metrics.RecordProviderError(ctx, cfg.Providers.Speech.Name, "tts")
		s.writeError(w, http.StatusInternalServerError, "Text-to-speech failed")
		return
	}
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip); err != nil {
		s.logger.Warn("write audio response", "error", err)
	}
}
