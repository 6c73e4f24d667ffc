// Command fluentia is the main entry point for the Fluentia language
// practice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/fluentia/fluentia/internal/archive"
	"github.com/fluentia/fluentia/internal/config"
	"github.com/fluentia/fluentia/internal/conversation"
	"github.com/fluentia/fluentia/internal/correction"
	"github.com/fluentia/fluentia/internal/health"
	"github.com/fluentia/fluentia/internal/observe"
	"github.com/fluentia/fluentia/internal/resilience"
	"github.com/fluentia/fluentia/internal/server"
	"github.com/fluentia/fluentia/internal/translate"
	"github.com/fluentia/fluentia/pkg/provider/llm"
	"github.com/fluentia/fluentia/pkg/provider/llm/anyllm"
	"github.com/fluentia/fluentia/pkg/provider/llm/gemini"
	"github.com/fluentia/fluentia/pkg/provider/llm/groq"
	"github.com/fluentia/fluentia/pkg/provider/llm/hfinference"
	"github.com/fluentia/fluentia/pkg/provider/tts"
	"github.com/fluentia/fluentia/pkg/provider/tts/elevenlabs"
)

const (
	defaultListenAddr = ":3001"

	// defaultGrammarModel is the fine-tuned grammar corrector used when the
	// grammar entry does not name a model of its own.
	defaultGrammarModel = "sylviali/eracond_llama_2_grammar"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is a local-development convenience; absence is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "fluentia: load .env: %v\n", err)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fluentia: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fluentia: %v\n", err)
		}
		return 1
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = defaultListenAddr
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fluentia starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "fluentia",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Turn archive ──────────────────────────────────────────────────────────
	var (
		store archive.Store = archive.Discard{}
		ready []health.Checker
	)
	if dsn := cfg.Archive.PostgresDSN; dsn != "" {
		pg, err := archive.NewPostgresStore(ctx, dsn)
		if err != nil {
			// Archiving is best-effort; a missing database must not keep
			// learners from practising.
			slog.Warn("turn archive unavailable, continuing without persistence", "err", err)
		} else {
			store = pg
			ready = append(ready, health.Checker{Name: "postgres", Check: pg.Ping})
			slog.Info("turn archive connected")
		}
	}
	defer store.Close()

	// ── Config watcher ────────────────────────────────────────────────────────
	currentConfig := func() *config.Config { return cfg }
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			slog.Info("log level changed; restart to apply", "level", d.NewLogLevel)
		}
		if d.SpeechChanged {
			slog.Info("speech settings reloaded", "voice_changes", len(d.VoiceChanges))
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
		currentConfig = watcher.Current
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(server.Deps{
		Config:       currentConfig,
		Orchestrator: providers.orchestrator,
		Translator:   providers.translator,
		Grammar:      providers.grammar,
		Empathy:      providers.chat,
		Speech:       providers.speech,
		Store:        store,
		Metrics:      observe.DefaultMetrics(),
		Logger:       logger,
		Ready:        ready,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			serveErr <- httpServer.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			serveErr <- httpServer.ListenAndServe()
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-serveErr:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet bundles the constructed pipeline collaborators the server needs.
type providerSet struct {
	chat         llm.Provider
	orchestrator *conversation.Orchestrator
	translator   *translate.Translator
	grammar      llm.Provider
	speech       tts.Provider
}

// registerBuiltinProviders wires the provider factories that ship with
// Fluentia into reg. Each factory receives a config.ProviderEntry and
// constructs the provider from the real implementation packages.
func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("groq", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []groq.Option
		if entry.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, groq.WithModel(entry.Model))
		}
		return groq.New(entry.APIKey, opts...)
	})

	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		return gemini.New(ctx, entry.APIKey, opts...)
	})

	reg.RegisterLLM("hfinference", func(entry config.ProviderEntry) (llm.Provider, error) {
		model := entry.Model
		if model == "" {
			model = defaultGrammarModel
		}
		var opts []hfinference.Option
		if entry.BaseURL != "" {
			opts = append(opts, hfinference.WithEndpoint(entry.BaseURL))
		}
		return hfinference.New(entry.APIKey, model, opts...)
	})

	// ollama, llamacpp, and any OpenAI-compatible server share the any-llm-go
	// backend; they are the local-development path.
	for _, providerName := range []string{"ollama", "llamacpp", "openai"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "stream_output_format"); format != "" {
			opts = append(opts, elevenlabs.WithStreamOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. Entries without an
// API key are skipped rather than failed: the server reports the missing
// credential per request, matching how the endpoints degrade individually.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	if entry := cfg.Providers.Chat; entry.Name != "" && entry.APIKey != "" {
		chat, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create chat provider %q: %w", entry.Name, err)
		}
		slog.Info("provider created", "kind", "chat", "name", entry.Name)

		if len(cfg.Providers.ChatFallbacks) > 0 {
			chain := resilience.NewChatFallback(chat, resilience.ChainConfig{})
			for _, fb := range cfg.Providers.ChatFallbacks {
				if fb.APIKey == "" {
					slog.Warn("chat fallback has no API key, skipping", "name", fb.Name)
					continue
				}
				p, err := reg.CreateLLM(fb)
				if err != nil {
					return nil, fmt.Errorf("create chat fallback %q: %w", fb.Name, err)
				}
				chain.Add(p)
				slog.Info("provider created", "kind", "chat_fallback", "name", fb.Name)
			}
			chat = chain
		}

		ps.chat = chat
		ps.orchestrator = conversation.NewOrchestrator(chat, correction.NewExtractor(chat, nil), nil)
		ps.translator = translate.New(chat, nil)
	} else {
		slog.Warn("no chat provider credentials; conversation and translation endpoints will report the missing key")
	}

	if entry := cfg.Providers.Grammar; entry.Name != "" && entry.APIKey != "" {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create grammar provider %q: %w", entry.Name, err)
		}
		ps.grammar = p
		slog.Info("provider created", "kind", "grammar", "name", entry.Name)
	}

	if entry := cfg.Providers.Speech; entry.Name != "" && entry.APIKey != "" {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create speech provider %q: %w", entry.Name, err)
		}
		ps.speech = p
		slog.Info("provider created", "kind", "speech", "name", entry.Name)
	}

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
