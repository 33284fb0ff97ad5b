// Package config provides the configuration schema, loader, and provider registry
// for the dictanote server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// StorageDriver selects the note store backend.
type StorageDriver string

const (
	// DriverSQLite stores notes in a local SQLite file.
	DriverSQLite StorageDriver = "sqlite"

	// DriverPostgres stores notes in a PostgreSQL database.
	DriverPostgres StorageDriver = "postgres"
)

// IsValid reports whether d is a recognised storage driver.
func (d StorageDriver) IsValid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Dictation     DictationConfig     `yaml:"dictation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins are host patterns accepted for cross-origin dictation
	// WebSockets. Same-origin requests are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares the speech and language model providers. The
// primary entry is tried first; fallbacks are tried in order when the primary
// fails or its circuit breaker is open.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// OptString extracts a string option. Returns "" if the key is absent or the
// value is not a string.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt extracts an integer option. YAML decodes whole numbers as int;
// floats are truncated. Returns 0 if the key is absent.
func (e ProviderEntry) OptInt(key string) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// StorageConfig selects where notes and settings are persisted.
type StorageConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver StorageDriver `yaml:"driver"`

	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
}

// DictationConfig tunes the dictation pipeline. Zero durations select the
// pipeline defaults.
type DictationConfig struct {
	Silence       time.Duration `yaml:"silence"`
	SentenceGrace time.Duration `yaml:"sentence_grace"`
	ClauseGrace   time.Duration `yaml:"clause_grace"`
	SaveDebounce  time.Duration `yaml:"save_debounce"`

	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`

	ContinuousRestart time.Duration `yaml:"continuous_restart"`
	ContinuousRetry   time.Duration `yaml:"continuous_retry"`

	// Comparator selects duplicate detection: "literal" or "fold".
	Comparator string `yaml:"comparator"`

	// Language is the BCP-47 tag passed to the recognizer.
	Language string `yaml:"language"`

	// SampleRate of the PCM audio sent to the recognizer, in Hz. Client
	// audio in another format is converted to 16-bit mono at this rate.
	SampleRate int `yaml:"sample_rate"`
}

// Timing converts the tuning block into pipeline timing.
func (d DictationConfig) Timing() dictation.Timing {
	return dictation.Timing{
		Silence:           d.Silence,
		SentenceGrace:     d.SentenceGrace,
		ClauseGrace:       d.ClauseGrace,
		SaveDebounce:      d.SaveDebounce,
		MaxAttempts:       d.MaxAttempts,
		Backoff:           d.Backoff,
		MaxBackoff:        d.MaxBackoff,
		ContinuousRestart: d.ContinuousRestart,
		ContinuousRetry:   d.ContinuousRetry,
		Equal:             dictation.ComparatorByName(d.Comparator),
	}
}

// ObservabilityConfig controls telemetry export.
type ObservabilityConfig struct {
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics endpoint. Nil means enabled.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether the Prometheus endpoint should be served.
func (o ObservabilityConfig) MetricsEnabled() bool {
	return o.Metrics == nil || *o.Metrics
}
