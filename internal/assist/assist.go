// Package assist runs the note assistant actions (summarize, brainstorm and
// beautify) against a language model and applies a beautified result back
// to the note.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MrWong99/dictanote/internal/notes"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/pkg/provider/llm"
)

// Action names an assistant action.
type Action string

const (
	Summarize  Action = "summarize"
	Brainstorm Action = "brainstorm"
	Beautify   Action = "beautify"
)

var (
	// ErrEmptyContent is matched by every [EmptyContentError].
	ErrEmptyContent = errors.New("assist: note content is empty")

	// ErrUnknownAction is returned by ParseAction for unsupported names.
	ErrUnknownAction = errors.New("assist: unknown action")

	// ErrNothingToApply is returned by ApplyBeautified when the last action
	// on the note was not a beautify.
	ErrNothingToApply = errors.New("No beautified content to apply")

	// ErrNoProvider is wrapped in a [GenerateError] when no language model
	// is configured.
	ErrNoProvider = errors.New("no language model configured")
)

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case Summarize, Brainstorm, Beautify:
		return a, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

// EmptyContentError rejects an action on a note with blank content.
type EmptyContentError struct {
	Action Action
}

func (e *EmptyContentError) Error() string {
	return "Note content is empty. Cannot " + string(e.Action) + "."
}

// Is reports whether target is ErrEmptyContent.
func (e *EmptyContentError) Is(target error) bool { return target == ErrEmptyContent }

// GenerateError wraps a model failure with the user-facing message.
type GenerateError struct {
	Err error
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("Failed to generate content: %s. Please check your API key and network connection.", e.Err)
}

func (e *GenerateError) Unwrap() error { return e.Err }

// Notes is the subset of notes.Service the assistant needs.
type Notes interface {
	Get(ctx context.Context, id string) (*notes.Note, error)
	Update(ctx context.Context, id, title, content string, images []notes.Image) (*notes.Note, error)
}

// Result is the outcome of one action.
type Result struct {
	NoteID  string `json:"noteId"`
	Action  Action `json:"action"`
	Content string `json:"content"`
}

// Option configures an [Assistant].
type Option func(*Assistant)

// WithMetrics records completion latency and outcome under providerName.
func WithMetrics(m *observe.Metrics, providerName string) Option {
	return func(a *Assistant) {
		a.metrics = m
		a.providerName = providerName
	}
}

// WithTimeout bounds each completion. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		a.timeout = d
	}
}

// Assistant runs actions for notes. It remembers the last result per note so
// a beautify can be applied afterwards. It is safe for concurrent use.
type Assistant struct {
	llm          llm.Provider
	notes        Notes
	metrics      *observe.Metrics
	providerName string
	timeout      time.Duration

	mu   sync.Mutex
	last map[string]Result
}

// New returns an Assistant backed by provider and store.
func New(provider llm.Provider, store Notes, opts ...Option) *Assistant {
	a := &Assistant{
		llm:          provider,
		notes:        store,
		providerName: "llm",
		last:         make(map[string]Result),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Summarize runs the summarize action.
func (a *Assistant) Summarize(ctx context.Context, noteID string) (*Result, error) {
	return a.Run(ctx, Summarize, noteID)
}

// Brainstorm runs the brainstorm action.
func (a *Assistant) Brainstorm(ctx context.Context, noteID string) (*Result, error) {
	return a.Run(ctx, Brainstorm, noteID)
}

// Beautify runs the beautify action.
func (a *Assistant) Beautify(ctx context.Context, noteID string) (*Result, error) {
	return a.Run(ctx, Beautify, noteID)
}

// Run executes action on the stored note. Blank content fails with an
// [EmptyContentError] without calling the model; model failures are returned
// as a [GenerateError]. A successful result replaces the note's last result.
func (a *Assistant) Run(ctx context.Context, action Action, noteID string) (*Result, error) {
	if _, err := ParseAction(string(action)); err != nil {
		return nil, err
	}
	n, err := a.notes.Get(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("assist: %s: %w", action, err)
	}
	if strings.TrimSpace(n.Content) == "" {
		return nil, &EmptyContentError{Action: action}
	}
	if a.llm == nil {
		return nil, &GenerateError{Err: ErrNoProvider}
	}

	ctx = observe.WithNoteID(ctx, noteID)
	ctx, span := observe.StartSpan(ctx, "assist."+string(action))
	defer span.End()
	span.SetAttributes(attribute.String("assist.action", string(action)))

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.llm.Complete(callCtx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(Prompt(action, n.Title, n.Content))},
	})
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if a.metrics != nil {
		a.metrics.RecordLLM(ctx, a.providerName, string(action), time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Error("assist: completion failed", "action", action, "err", err)
		return nil, &GenerateError{Err: err}
	}

	res := Result{NoteID: noteID, Action: action, Content: resp.Content}
	a.mu.Lock()
	a.last[noteID] = res
	a.mu.Unlock()
	observe.Logger(ctx).Debug("assist: completed", "action", action, "tokens", resp.Usage.TotalTokens)
	return &res, nil
}

// Last returns the last result for noteID.
func (a *Assistant) Last(noteID string) (Result, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.last[noteID]
	return r, ok
}

// ApplyBeautified replaces the note content with its last beautify result
// and saves it. The result stays remembered, so applying twice is harmless.
func (a *Assistant) ApplyBeautified(ctx context.Context, noteID string) (*notes.Note, error) {
	res, ok := a.Last(noteID)
	if !ok || res.Action != Beautify || res.Content == "" {
		return nil, ErrNothingToApply
	}
	n, err := a.notes.Get(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("assist: apply: %w", err)
	}
	updated, err := a.notes.Update(ctx, noteID, n.Title, res.Content, n.Images)
	if err != nil {
		return nil, fmt.Errorf("assist: apply: %w", err)
	}
	return updated, nil
}

// Forget drops the remembered result for noteID.
func (a *Assistant) Forget(noteID string) {
	a.mu.Lock()
	delete(a.last, noteID)
	a.mu.Unlock()
}
