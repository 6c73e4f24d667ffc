// Package server exposes the Fluentia HTTP API: conversation turns, word
// translation, speech synthesis, and grammar correction, plus health and
// metrics endpoints.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluentia/fluentia/internal/archive"
	"github.com/fluentia/fluentia/internal/config"
	"github.com/fluentia/fluentia/internal/conversation"
	"github.com/fluentia/fluentia/internal/health"
	"github.com/fluentia/fluentia/internal/observe"
	"github.com/fluentia/fluentia/internal/translate"
	"github.com/fluentia/fluentia/pkg/provider/llm"
	"github.com/fluentia/fluentia/pkg/provider/tts"
)

// User-visible error messages. Rate-limit and quota failures get distinct
// text; everything else from a provider collapses into the generic one.
const (
	msgRateLimited    = "The assistant is receiving too many requests. Please try again in a moment."
	msgQuotaExhausted = "The assistant's usage quota is exhausted. Please try again later."
	msgGeneric        = "Could not get a response, please try again."
)

// Deps carries the collaborators a [Server] needs. Config and Orchestrator
// are required; nil optional fields disable the corresponding endpoint or
// fall back to a no-op implementation.
type Deps struct {
	// Config returns the current configuration. Called per request so a
	// config watcher can hot-swap voice mappings and toggles.
	Config func() *config.Config

	Orchestrator *conversation.Orchestrator
	Translator   *translate.Translator

	// Grammar is the instruction-completion backend for /grammar-correction.
	// Nil disables the endpoint with a missing-credential error.
	Grammar llm.Provider

	// Empathy generates the encouraging feedback line accompanying a grammar
	// correction. Normally the chat provider; nil means the canned fallback
	// is always used.
	Empathy llm.Provider

	// Speech is the premium TTS provider. Nil means clients are always told
	// to use browser TTS.
	Speech tts.Provider

	Store   archive.Store
	Metrics *observe.Metrics
	Logger  *slog.Logger

	// Ready lists additional readiness checks beyond the built-in ones.
	Ready []health.Checker
}

// Server is the Fluentia HTTP API server.
type Server struct {
	cfg        func() *config.Config
	orch       *conversation.Orchestrator
	translator *translate.Translator
	grammar    llm.Provider
	empathy    llm.Provider
	speech     tts.Provider
	store      archive.Store
	metrics    *observe.Metrics
	logger     *slog.Logger
	router     *chi.Mux
}

// New assembles the server and its routes.
func New(d Deps) *Server {
	if d.Store == nil {
		d.Store = archive.Discard{}
	}
	if d.Metrics == nil {
		d.Metrics = observe.DefaultMetrics()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	s := &Server{
		cfg:        d.Config,
		orch:       d.Orchestrator,
		translator: d.Translator,
		grammar:    d.Grammar,
		empathy:    d.Empathy,
		speech:     d.Speech,
		store:      d.Store,
		metrics:    d.Metrics,
		logger:     d.Logger,
		router:     chi.NewRouter(),
	}
	s.routes(d.Ready)
	return s
}

func (s *Server) routes(ready []health.Checker) {
	r := s.router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(observe.Middleware(s.metrics))

	r.Post("/language-conversation", s.handleConversation)
	r.Post("/translate-word", s.handleTranslate)
	r.Post("/text-to-speech", s.handleTextToSpeech)
	r.Post("/grammar-correction", s.handleGrammar)

	h := health.New(ready...)
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())
}

func (s *Server) allowedOrigins() []string {
	if origins := s.cfg().Server.AllowedOrigins; len(origins) > 0 {
		return origins
	}
	return []string{"*"}
}

// Router returns the assembled HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

// decodeJSON decodes the request body into v. Unknown fields are tolerated;
// web clients ship more context than the API needs.
func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON encodes v with the given status. Encoding failures are logged;
// the status line has already been written at that point.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError emits the {error} envelope every endpoint shares.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// providerFailure maps a provider error to its HTTP status and user-visible
// message. Rate-limit and quota statuses pass through; everything else is a
// generic 500.
func providerFailure(err error) (int, string) {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.RateLimited():
			return http.StatusTooManyRequests, msgRateLimited
		case perr.QuotaExhausted():
			return http.StatusPaymentRequired, msgQuotaExhausted
		}
	}
	return http.StatusInternalServerError, msgGeneric
}

// missingCredential returns the "Missing <VAR>" error body for a provider
// entry without a key, naming the environment variable that would fix it.
func missingCredential(entry config.ProviderEntry) string {
	if v := config.CredentialVar(entry.Name); v != "" {
		return "Missing " + v
	}
	return "Missing API key for provider " + entry.Name
}
