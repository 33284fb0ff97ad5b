package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/dictanote/internal/dictation"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"deepgram"},
}

const (
	DefaultListenAddr  = ":8080"
	DefaultSQLiteDSN   = "dictanote.db"
	DefaultSampleRate  = 16000
	DefaultLanguage    = "en-US"
	DefaultServiceName = "dictanote"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. An empty document yields the default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = DefaultSQLiteDSN
	}

	d := &cfg.Dictation
	setDuration(&d.Silence, dictation.DefaultSilence)
	setDuration(&d.SentenceGrace, dictation.DefaultSentenceGrace)
	setDuration(&d.ClauseGrace, dictation.DefaultClauseGrace)
	setDuration(&d.SaveDebounce, dictation.DefaultSaveDebounce)
	setDuration(&d.Backoff, dictation.DefaultBackoff)
	setDuration(&d.MaxBackoff, dictation.DefaultMaxBackoff)
	setDuration(&d.ContinuousRestart, dictation.DefaultContinuousRestart)
	setDuration(&d.ContinuousRetry, dictation.DefaultContinuousRetry)
	if d.MaxAttempts == 0 {
		d.MaxAttempts = dictation.DefaultMaxAttempts
	}
	if d.Comparator == "" {
		d.Comparator = "literal"
	}
	if d.Language == "" {
		d.Language = DefaultLanguage
	}
	if d.SampleRate == 0 {
		d.SampleRate = DefaultSampleRate
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
}

func setDuration[T ~int64](v *T, def T) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	errs = append(errs, validateProviders("stt", cfg.Providers.STT, cfg.Providers.STTFallbacks)...)
	errs = append(errs, validateProviders("llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is not configured; dictation will report the recognizer as unsupported")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; assist actions will be unavailable")
	}

	if cfg.Storage.Driver != "" && !cfg.Storage.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: sqlite, postgres", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == DriverPostgres && cfg.Storage.DSN == "" {
		errs = append(errs, errors.New("storage.dsn is required when storage.driver is postgres"))
	}

	d := cfg.Dictation
	for _, f := range []struct {
		name string
		v    int64
	}{
		{"silence", int64(d.Silence)},
		{"sentence_grace", int64(d.SentenceGrace)},
		{"clause_grace", int64(d.ClauseGrace)},
		{"save_debounce", int64(d.SaveDebounce)},
		{"backoff", int64(d.Backoff)},
		{"max_backoff", int64(d.MaxBackoff)},
		{"continuous_restart", int64(d.ContinuousRestart)},
		{"continuous_retry", int64(d.ContinuousRetry)},
	} {
		if f.v < 0 {
			errs = append(errs, fmt.Errorf("dictation.%s must not be negative", f.name))
		}
	}
	if d.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("dictation.max_attempts %d must not be negative", d.MaxAttempts))
	}
	if d.Backoff > 0 && d.MaxBackoff > 0 && d.MaxBackoff < d.Backoff {
		errs = append(errs, fmt.Errorf("dictation.max_backoff %s is shorter than dictation.backoff %s", d.MaxBackoff, d.Backoff))
	}
	if d.Comparator != "" && d.Comparator != "literal" && d.Comparator != "fold" {
		errs = append(errs, fmt.Errorf("dictation.comparator %q is invalid; valid values: literal, fold", d.Comparator))
	}
	if d.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("dictation.sample_rate %d must not be negative", d.SampleRate))
	}

	return errors.Join(errs...)
}

func validateProviders(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, primary.Name)
	if len(fallbacks) > 0 && primary.Name == "" {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks requires providers.%s to be configured", kind, kind))
	}
	for i, fb := range fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s_fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	return errs
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
