package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/dictanote/internal/config"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/internal/resilience"
	"github.com/MrWong99/dictanote/pkg/provider/llm"
	"github.com/MrWong99/dictanote/pkg/provider/stt"
)

// Providers holds the speech and language model backends, each behind a
// circuit-breaking fallback group. A nil field means the capability is not
// configured.
type Providers struct {
	STT     *resilience.STTFallback
	STTName string

	LLM     *resilience.LLMFallback
	LLMName string
}

// breakerConfig is shared by every provider's circuit breaker.
var breakerConfig = resilience.CircuitBreakerConfig{
	MaxFailures:  3,
	ResetTimeout: 30 * time.Second,
	HalfOpenMax:  1,
	OnStateChange: func(name string, from, to resilience.State) {
		slog.Warn("provider circuit changed state", "provider", name, "from", from, "to", to)
	},
}

// BuildProviders instantiates the providers named in cfg through reg. Names
// the registry does not know are skipped with a warning; other construction
// errors are returned.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	fb := resilience.FallbackConfig{CircuitBreaker: breakerConfig}

	if entry := cfg.Providers.STT; entry.Name != "" {
		p, err := createOptional("stt", entry, reg.CreateSTT)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.STT = resilience.NewSTTFallback(p, entry.Name, fb)
			ps.STTName = entry.Name
			for _, e := range cfg.Providers.STTFallbacks {
				p, err := createOptional("stt", e, reg.CreateSTT)
				if err != nil {
					return nil, err
				}
				if p != nil {
					ps.STT.AddFallback(e.Name, p)
				}
			}
		}
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := createOptional("llm", entry, reg.CreateLLM)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ps.LLM = resilience.NewLLMFallback(p, entry.Name, fb)
			ps.LLMName = entry.Name
			for _, e := range cfg.Providers.LLMFallbacks {
				p, err := createOptional("llm", e, reg.CreateLLM)
				if err != nil {
					return nil, err
				}
				if p != nil {
					ps.LLM.AddFallback(e.Name, p)
				}
			}
		}
	}

	return ps, nil
}

func createOptional[T any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (T, error)) (T, error) {
	var zero T
	p, err := create(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("provider not available, skipping", "kind", kind, "name", entry.Name)
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("create %s provider %q: %w", kind, entry.Name, err)
	}
	slog.Info("provider created", "kind", kind, "name", entry.Name, "model", entry.Model)
	return p, nil
}

// speechProvider returns the STT capability as an interface value, nil when
// unconfigured, timed by m.
func (ps *Providers) speechProvider(m *observe.Metrics) stt.Provider {
	if ps == nil || ps.STT == nil {
		return nil
	}
	return &timedSTT{next: ps.STT, name: ps.STTName, metrics: m}
}

// languageModel returns the LLM capability, nil when unconfigured.
func (ps *Providers) languageModel() llm.Provider {
	if ps == nil || ps.LLM == nil {
		return nil
	}
	return ps.LLM
}

// timedSTT records how long opening each recognition stream takes.
type timedSTT struct {
	next    stt.Provider
	name    string
	metrics *observe.Metrics
}

func (t *timedSTT) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	start := time.Now()
	h, err := t.next.StartStream(ctx, cfg)
	if t.metrics != nil {
		t.metrics.RecordSTTStart(ctx, t.name, time.Since(start), err)
	}
	return h, err
}
