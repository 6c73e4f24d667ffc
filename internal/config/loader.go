package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat":    {"groq", "gemini", "ollama", "llamacpp", "openai"},
	"grammar": {"hfinference"},
	"speech":  {"elevenlabs"},
}

// envKeys maps provider names to the environment variable conventionally
// holding their API key. Used by [applyEnv] to fill keys left empty in YAML
// so credentials can stay out of config files.
var envKeys = map[string]string{
	"groq":        "GROQ_API_KEY",
	"gemini":      "GOOGLE_AI_API_KEY",
	"openai":      "OPENAI_API_KEY",
	"hfinference": "HUGGINGFACE_API_KEY",
	"elevenlabs":  "ELEVENLABS_API_KEY",
}

// CredentialVar returns the environment variable conventionally holding the
// API key for the named provider, or "" when none is defined. Handlers use it
// to name the missing variable in error responses.
func CredentialVar(name string) string { return envKeys[name] }

// Load reads the YAML configuration file at path, overlays environment
// variables, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, overlays environment
// variables, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills credentials and the archive DSN from environment variables
// when the YAML left them empty. YAML values always win.
func applyEnv(cfg *Config) {
	fillKey(&cfg.Providers.Chat)
	for i := range cfg.Providers.ChatFallbacks {
		fillKey(&cfg.Providers.ChatFallbacks[i])
	}
	fillKey(&cfg.Providers.Grammar)
	fillKey(&cfg.Providers.Speech)

	if cfg.Archive.PostgresDSN == "" {
		cfg.Archive.PostgresDSN = os.Getenv("DATABASE_URL")
	}
}

// fillKey sets entry.APIKey from the provider's conventional environment
// variable if the key is not already set.
func fillKey(entry *ProviderEntry) {
	if entry.Name == "" || entry.APIKey != "" {
		return
	}
	if env, ok := envKeys[entry.Name]; ok {
		entry.APIKey = os.Getenv(env)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("chat", cfg.Providers.Chat.Name)
	for _, fb := range cfg.Providers.ChatFallbacks {
		validateProviderName("chat", fb.Name)
	}
	validateProviderName("grammar", cfg.Providers.Grammar.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)

	// Chat provider availability
	if cfg.Providers.Chat.Name == "" {
		errs = append(errs, errors.New("providers.chat.name is required"))
	}

	// Fallback chain sanity: a fallback must be named and must not repeat
	// the primary or an earlier fallback.
	seen := map[string]int{cfg.Providers.Chat.Name: -1}
	for i, fb := range cfg.Providers.ChatFallbacks {
		prefix := fmt.Sprintf("providers.chat_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[fb.Name]; ok {
			if prev == -1 {
				errs = append(errs, fmt.Errorf("%s.name %q duplicates the primary chat provider", prefix, fb.Name))
			} else {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of chat_fallbacks[%d]", prefix, fb.Name, prev))
			}
			continue
		}
		seen[fb.Name] = i
	}

	// Speech synthesis availability
	if cfg.Speech.Enabled {
		if cfg.Providers.Speech.Name == "" {
			slog.Warn("speech.enabled is true but providers.speech is not configured; clients will use browser TTS")
		} else if cfg.Providers.Speech.APIKey == "" {
			slog.Warn("speech provider has no API key; clients will use browser TTS",
				"provider", cfg.Providers.Speech.Name)
		}
	}
	for lang, id := range cfg.Speech.Voices {
		if id == "" {
			errs = append(errs, fmt.Errorf("speech.voices[%q] has an empty voice ID", lang))
		}
	}

	// Archive availability
	if cfg.Archive.PostgresDSN == "" {
		slog.Warn("archive.postgres_dsn is empty; practice turns will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
