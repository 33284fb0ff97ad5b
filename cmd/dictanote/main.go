// Command dictanote serves the dictation note editor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/dictanote/internal/app"
	"github.com/MrWong99/dictanote/internal/config"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/pkg/provider/llm"
	"github.com/MrWong99/dictanote/pkg/provider/llm/anyllm"
	"github.com/MrWong99/dictanote/pkg/provider/llm/openai"
	"github.com/MrWong99/dictanote/pkg/provider/stt"
	"github.com/MrWong99/dictanote/pkg/provider/stt/deepgram"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// providerTimeout bounds one HTTP call to a language model.
const providerTimeout = 90 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// The watcher loads the file once up front and later reloads it.
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if application != nil {
			application.ApplyConfig(old, new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dictanote: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dictanote: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()

	var level slog.LevelVar
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("dictanote starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithLogLevel(&level), app.WithWatcher(watcher)}
	var telemetry *observe.Telemetry
	if cfg.Observability.MetricsEnabled() {
		telemetry, err = observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: version,
		})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		// DefaultMetrics binds to the global meter provider InitProvider just installed.
		opts = append(opts, app.WithMetrics(observe.DefaultMetrics()), app.WithMetricsHandler(telemetry.MetricsHandler))
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := app.BuildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	printStartupSummary(cfg)

	application, err = app.New(ctx, cfg, providers, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	code := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return code
}

// registerBuiltinProviders wires the provider factories that ship with
// dictanote into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// openai talks to the API directly; the rest go through any-llm and
	// share the same pattern: optional APIKey + optional BaseURL.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		opts := []openai.Option{openai.WithHTTPClient(observe.HTTPClient(providerTimeout))}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if n := entry.OptInt("max_retries"); n > 0 {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			if providerName == "gemini" {
				return anyllm.NewGemini(entry.Model, opts...)
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if ms := entry.OptInt("endpointing_ms"); ms > 0 {
			opts = append(opts, deepgram.WithEndpointing(ms))
		}
		if s := entry.OptInt("keepalive_seconds"); s > 0 {
			opts = append(opts, deepgram.WithKeepAlive(time.Duration(s)*time.Second))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	slog.Debug("registered providers", "llm", reg.LLMNames(), "stt", reg.STTNames())
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        dictanote: startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	fmt.Printf("║  Fallbacks       : %-19s ║\n",
		fmt.Sprintf("%d stt, %d llm", len(cfg.Providers.STTFallbacks), len(cfg.Providers.LLMFallbacks)))
	fmt.Printf("║  Storage         : %-19s ║\n", cfg.Storage.Driver)
	fmt.Printf("║  Comparator      : %-19s ║\n", cfg.Dictation.Comparator)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}
