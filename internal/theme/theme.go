// Package theme stores the UI theme preference and renders the random
// background of the surprise theme.
package theme

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Theme is a UI theme name.
type Theme string

const (
	Light    Theme = "light"
	Dark     Theme = "dark"
	Surprise Theme = "surprise"
)

// Default is used when no preference is stored.
const Default = Light

// SettingKey is the settings key the preference is stored under.
const SettingKey = "theme"

// Parse validates a theme name.
func Parse(s string) (Theme, error) {
	switch t := Theme(s); t {
	case Light, Dark, Surprise:
		return t, nil
	}
	return "", fmt.Errorf("theme: unknown theme %q", s)
}

// Settings is the key/value store the preference lives in.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	PutSetting(ctx context.Context, key, value string) error
}

// View is what a client needs to render a theme.
type View struct {
	Theme Theme `json:"theme"`
	// RootClasses are the classes for the document root element.
	RootClasses []string `json:"rootClasses"`
	// Background is a CSS background-image; set for Surprise only.
	Background string `json:"background,omitempty"`
}

// Service reads and writes the theme preference.
type Service struct {
	store Settings

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a [Service].
type Option func(*Service)

// WithRand sets the random source used for surprise gradients.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// NewService returns a Service backed by store.
func NewService(store Settings, opts ...Option) *Service {
	s := &Service{store: store, rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the stored theme. A missing or unrecognized value yields
// Default.
func (s *Service) Get(ctx context.Context) (Theme, error) {
	v, ok, err := s.store.GetSetting(ctx, SettingKey)
	if err != nil {
		return "", fmt.Errorf("theme: get: %w", err)
	}
	if !ok {
		return Default, nil
	}
	t, err := Parse(v)
	if err != nil {
		return Default, nil
	}
	return t, nil
}

// Set stores t.
func (s *Service) Set(ctx context.Context, t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}
	if err := s.store.PutSetting(ctx, SettingKey, string(t)); err != nil {
		return fmt.Errorf("theme: set: %w", err)
	}
	return nil
}

// View renders t. Every call for Surprise draws a new gradient.
func (s *Service) View(t Theme) View {
	v := View{Theme: t}
	switch t {
	case Dark:
		v.RootClasses = []string{"dark"}
	case Surprise:
		v.RootClasses = []string{"light", "surprise-theme"}
		s.mu.Lock()
		v.Background = Gradient(s.rnd)
		s.mu.Unlock()
	default:
		v.RootClasses = []string{"light"}
	}
	return v
}

// Gradient returns a random three-stop linear gradient of pastel HSL colors.
func Gradient(r *rand.Rand) string {
	angle := r.IntN(360)
	c1 := fmt.Sprintf("hsl(%d, 70%%, 80%%)", r.IntN(360))
	c2 := fmt.Sprintf("hsl(%d, 70%%, 85%%)", r.IntN(360))
	c3 := fmt.Sprintf("hsl(%d, 70%%, 90%%)", r.IntN(360))
	return fmt.Sprintf("linear-gradient(%ddeg, %s, %s, %s)", angle, c1, c2, c3)
}
