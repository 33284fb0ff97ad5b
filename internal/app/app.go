// Package app wires the note server together.
//
// The App struct owns the full lifecycle: New opens storage and builds the
// services, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/dictanote/internal/api"
	"github.com/MrWong99/dictanote/internal/assist"
	"github.com/MrWong99/dictanote/internal/config"
	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/health"
	"github.com/MrWong99/dictanote/internal/notes"
	"github.com/MrWong99/dictanote/internal/notes/postgres"
	"github.com/MrWong99/dictanote/internal/notes/sqlite"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/internal/theme"
)

const (
	// assistTimeout bounds one model completion.
	assistTimeout = 60 * time.Second

	// drainTimeout bounds how long Run waits for in-flight requests once
	// its context ends.
	drainTimeout = 10 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Injectable dependencies; defaults are created in New.
	store          notes.Store
	pinger         health.Pinger
	metrics        *observe.Metrics
	metricsHandler http.Handler
	clock          dictation.Clock
	levelVar       *slog.LevelVar
	watcher        *config.Watcher

	// Subsystems, initialised in New and torn down in Shutdown.
	notes     *notes.Service
	themes    *theme.Service
	assist    *assist.Assistant
	dictation *DictationManager
	server    *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a note store instead of opening one from config. If the
// store has a Ping method it backs the readiness check.
func WithStore(s notes.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metric instruments. Defaults to
// observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithClock drives dictation timers from c.
func WithClock(c dictation.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithLogLevel lets config reloads change the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithWatcher makes Run poll w for config changes.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// New creates an App by wiring all subsystems together. providers comes
// from main.go (built via the config registry) and may be nil.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.notes = notes.NewService(a.store)
	a.themes = theme.NewService(a.store)
	a.assist = assist.New(providers.languageModel(), a.notes,
		assist.WithMetrics(a.metrics, providers.LLMName),
		assist.WithTimeout(assistTimeout),
	)
	a.dictation = NewDictationManager(DictationManagerConfig{
		Notes:    a.notes,
		STT:      providers.speechProvider(a.metrics),
		Metrics:  a.metrics,
		Clock:    a.clock,
		Settings: cfg.Dictation,
	})

	srv := api.New(api.Config{
		Notes:          a.notes,
		Assist:         a.assist,
		Themes:         a.themes,
		Dictation:      dictationHub{a.dictation},
		Health:         health.New(a.checkers()...),
		Metrics:        a.metrics,
		MetricsHandler: a.metricsHandler,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// initStore opens the configured database and applies migrations, unless a
// store was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		if p, ok := a.store.(health.Pinger); ok {
			a.pinger = p
		}
		return nil
	}

	dsn := a.cfg.Storage.DSN
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		st := postgres.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.store, a.pinger = st, pool
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
	default:
		if dsn == "" {
			dsn = config.DefaultSQLiteDSN
		}
		st, err := sqlite.Open(dsn)
		if err != nil {
			return err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return err
		}
		a.store, a.pinger = st, st
		a.closers = append(a.closers, st.Close)
	}
	slog.Info("note store ready", "driver", a.cfg.Storage.Driver)
	return nil
}

func (a *App) checkers() []health.Checker {
	var cs []health.Checker
	if a.pinger != nil {
		cs = append(cs, health.Ping("store", a.pinger))
	}
	if a.providers.STT != nil {
		cs = append(cs, health.Breakers("stt", a.providers.STT.Status))
	}
	if a.providers.LLM != nil {
		cs = append(cs, health.Breakers("llm", a.providers.LLM.Status))
	}
	return cs
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Dictation returns the dictation session manager.
func (a *App) Dictation() *DictationManager { return a.dictation }

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln and, when a watcher is configured, polls the
// config file. It returns nil once ctx is cancelled and the listener has
// drained, or the first serve error.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.dictation.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), drainTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(gctx) })
	}

	slog.Info("app running", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// ApplyConfig applies the hot-reloadable part of a config change. Sections
// that need a restart are logged.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.IsZero() {
		return
	}
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DictationChanged {
		a.dictation.SetSettings(d.NewDictation)
		slog.Info("dictation settings changed, applying to the next opened note")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
}

// Shutdown closes dictation sessions, stops the HTTP server and runs the
// closers in order. It respects the context deadline: if ctx expires before
// all closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.dictation.CloseAll()
		if a.watcher != nil {
			a.watcher.Stop()
		}
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// dictationHub exposes the manager to the API layer.
type dictationHub struct{ *DictationManager }

func (h dictationHub) Open(ctx context.Context, noteID string, c api.DictationClient) (api.DictationSession, error) {
	s, err := h.DictationManager.Open(ctx, noteID, c)
	if err != nil {
		return nil, err
	}
	return s, nil
}
