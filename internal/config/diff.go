package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider,
// storage and listener changes need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// DictationChanged is true when any tuning value differs. The new values
	// apply to pipelines opened after the reload.
	DictationChanged bool
	NewDictation     DictationConfig

	// RestartRequired lists sections that changed but cannot be applied live.
	RestartRequired []string
}

// IsZero reports whether d describes no changes at all.
func (d ConfigDiff) IsZero() bool {
	return !d.LogLevelChanged && !d.DictationChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Dictation != new.Dictation {
		d.DictationChanged = true
		d.NewDictation = new.Dictation
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || !sameTLS(old.Server.TLS, new.Server.TLS) ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Observability.ServiceName != new.Observability.ServiceName ||
		old.Observability.MetricsEnabled() != new.Observability.MetricsEnabled() {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}

	return d
}

func sameTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
