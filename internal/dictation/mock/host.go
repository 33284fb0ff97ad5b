package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/notes"
)

// Host is an in-memory dictation.Host.
type Host struct {
	mu      sync.Mutex
	title   string
	content []rune
	cursor  int
	focused int
}

// NewHost returns a Host holding content with the cursor at cursor.
func NewHost(title, content string, cursor int) *Host {
	return &Host{title: title, content: []rune(content), cursor: cursor}
}

func (h *Host) CursorPosition() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *Host) TextBefore(pos int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.content[:clamp(pos, len(h.content))])
}

func (h *Host) SpliceAt(pos int, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pos = clamp(pos, len(h.content))
	h.content = slices.Insert(h.content, pos, []rune(text)...)
}

func (h *Host) SetCursorPosition(pos int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cursor = pos
}

func (h *Host) Focus() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focused++
}

func (h *Host) Snapshot() (string, string, []notes.Image) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title, string(h.content), nil
}

// Content returns the current buffer.
func (h *Host) Content() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.content)
}

// FocusCount returns how often Focus was called.
func (h *Host) FocusCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}


func clamp(pos, n int) int {
	return max(0, min(pos, n))
}

var _ dictation.Host = (*Host)(nil)

// SaveCall records one Save invocation.
type SaveCall struct {
	NoteID  string
	Title   string
	Content string
}

// Saver is a mock implementation of dictation.Saver.
type Saver struct {
	mu    sync.Mutex
	calls []SaveCall

	// Err is returned by every Save.
	Err error
}

func (s *Saver) Save(_ context.Context, noteID, title, content string, _ []notes.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SaveCall{NoteID: noteID, Title: title, Content: content})
	return s.Err
}

// Calls returns a copy of the recorded saves.
func (s *Saver) Calls() []SaveCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

var _ dictation.Saver = (*Saver)(nil)

// Reporter records reported messages.
type Reporter struct {
	mu   sync.Mutex
	msgs []string
}

func (r *Reporter) ReportError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
}

// Messages returns a copy of the reported messages.
func (r *Reporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.msgs)
}

var _ dictation.Reporter = (*Reporter)(nil)

// Restart records one Observer.Restarting call.
type Restart struct {
	Attempt int
	Delay   time.Duration
}

// Observer records every notification.
type Observer struct {
	mu       sync.Mutex
	states   []dictation.State
	errs     []dictation.ErrorKind
	restarts []Restart
	previews []string
	commits  []string
}

func (o *Observer) StateChanged(st dictation.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st)
}

func (o *Observer) SessionError(kind dictation.ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, kind)
}

func (o *Observer) Restarting(attempt int, delay time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.restarts = append(o.restarts, Restart{Attempt: attempt, Delay: delay})
}

func (o *Observer) PreviewChanged(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.previews = append(o.previews, text)
}

func (o *Observer) Committed(text string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commits = append(o.commits, text)
}

// States returns the recorded state transitions.
func (o *Observer) States() []dictation.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.states)
}

// Errors returns the recorded session error kinds.
func (o *Observer) Errors() []dictation.ErrorKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.errs)
}

// Restarts returns the recorded restarts.
func (o *Observer) Restarts() []Restart {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.restarts)
}

// Previews returns the recorded preview texts.
func (o *Observer) Previews() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.previews)
}

// Commits returns the committed texts.
func (o *Observer) Commits() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.commits)
}

var _ dictation.Observer = (*Observer)(nil)
