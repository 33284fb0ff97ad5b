package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/dictanote/internal/config"
	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/notes"
	"github.com/MrWong99/dictanote/internal/observe"
	"github.com/MrWong99/dictanote/internal/speech"
	"github.com/MrWong99/dictanote/pkg/provider/stt"
)

// ErrSessionClosed is returned by [Session.Start] after the session was
// closed, usually because dictation moved to another note.
var ErrSessionClosed = errors.New("app: dictation session closed")

// Client is the user side of a dictation session. It supplies the
// microphone, shows fatal errors and pipeline activity, and receives the
// editor content whenever dictation hands focus back.
type Client interface {
	speech.AudioSource
	dictation.Reporter
	dictation.Observer
	ShowContent(content string, cursor int)
}

// DictationManagerConfig holds the dependencies of a [DictationManager].
type DictationManagerConfig struct {
	Notes *notes.Service

	// STT is the recognition backend. Nil makes every start report the
	// capability as unsupported.
	STT stt.Provider

	// Metrics is optional.
	Metrics *observe.Metrics

	// Clock drives pipeline timers. Defaults to the system clock.
	Clock dictation.Clock

	Settings config.DictationConfig
}

// DictationManager owns the dictation pipeline of the note being edited.
// At most one session is open at a time; opening another closes the
// previous one, the equivalent of the user switching notes. All methods are
// safe for concurrent use.
type DictationManager struct {
	notes   *notes.Service
	stt     stt.Provider
	metrics *observe.Metrics
	clock   dictation.Clock

	mu       sync.Mutex
	settings config.DictationConfig
	active   *Session
}

// NewDictationManager returns a manager with no open session.
func NewDictationManager(cfg DictationManagerConfig) *DictationManager {
	return &DictationManager{
		notes:    cfg.Notes,
		stt:      cfg.STT,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		settings: cfg.Settings,
	}
}

// Open loads noteID into a fresh editor and builds its pipeline for c. The
// previously open session, if any, is closed after the new one is ready.
func (m *DictationManager) Open(ctx context.Context, noteID string, c Client) (*Session, error) {
	n, err := m.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	settings := m.settings
	m.mu.Unlock()

	editor := notes.NewEditor(n)
	editor.OnFocus(c.ShowContent)

	s := &Session{
		manager:    m,
		noteID:     noteID,
		sampleRate: settings.SampleRate,
		editor:     editor,
		done:       make(chan struct{}),
	}
	obs := observers{c}
	if m.metrics != nil {
		s.metrics = &metricsObserver{metrics: m.metrics}
		obs = append(obs, s.metrics)
	}

	rec := speech.NewRecognizer(m.stt, c, stt.StreamConfig{
		SampleRate: settings.SampleRate,
		Channels:   1,
		Language:   settings.Language,
	})
	p, err := dictation.NewPipeline(dictation.Config{
		NoteID:     noteID,
		Host:       editor,
		Saver:      m.notes,
		Recognizer: rec,
		Reporter:   c,
		Observer:   obs,
		Clock:      m.clock,
		Timing:     settings.Timing(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: build dictation pipeline: %w", err)
	}
	s.pipeline = p

	m.mu.Lock()
	prev := m.active
	m.active = s
	m.mu.Unlock()

	if prev != nil {
		prev.close()
		slog.Info("dictation moved to another note", "from_note", prev.noteID, "note_id", noteID)
	} else {
		slog.Info("dictation opened", "note_id", noteID)
	}
	return s, nil
}

// Active returns the open session, or nil.
func (m *DictationManager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// NoteChanged brings the open editor in line with an edit made outside
// dictation, such as an autosave PUT from the client. Nothing is pushed back.
func (m *DictationManager) NoteChanged(n *notes.Note) {
	if s := m.sessionFor(n.ID); s != nil {
		s.sync(n)
	}
}

// NoteReplaced is NoteChanged for server-side rewrites the client has not
// seen yet; the new content is pushed to the client.
func (m *DictationManager) NoteReplaced(n *notes.Note) {
	if s := m.sessionFor(n.ID); s != nil {
		s.sync(n)
		s.editor.Focus()
	}
}

// NoteDeleted closes the open session if it edits id.
func (m *DictationManager) NoteDeleted(id string) {
	if s := m.sessionFor(id); s != nil {
		s.Close()
	}
}

// SetSettings replaces the tuning used by sessions opened from now on.
func (m *DictationManager) SetSettings(d config.DictationConfig) {
	m.mu.Lock()
	m.settings = d
	m.mu.Unlock()
}

// Settings returns the current tuning.
func (m *DictationManager) Settings() config.DictationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// CloseAll closes the open session. Used during shutdown.
func (m *DictationManager) CloseAll() {
	m.mu.Lock()
	s := m.active
	m.active = nil
	m.mu.Unlock()
	if s != nil {
		s.close()
	}
}

func (m *DictationManager) sessionFor(noteID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.noteID == noteID {
		return m.active
	}
	return nil
}

func (m *DictationManager) release(s *Session) {
	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
}

// Session is one client's dictation on one note.
type Session struct {
	manager    *DictationManager
	noteID     string
	sampleRate int
	editor     *notes.Editor
	pipeline   *dictation.Pipeline
	metrics    *metricsObserver

	closeOnce sync.Once
	done      chan struct{}
}

// NoteID returns the note being dictated into.
func (s *Session) NoteID() string { return s.noteID }

// Editor returns the live buffer of the note.
func (s *Session) Editor() *notes.Editor { return s.editor }

// Start begins dictation in mode, stopping the other mode if it is active.
func (s *Session) Start(mode dictation.Mode) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	if s.metrics != nil {
		s.metrics.setMode(mode)
	}
	s.pipeline.Start(mode)
	return nil
}

// Stop ends dictation at the user's request.
func (s *Session) Stop() { s.pipeline.Stop() }

// SetCursor records where the user placed the cursor. The next commit is
// inserted there.
func (s *Session) SetCursor(pos int) { s.editor.SetCursorPosition(pos) }

// SampleRate returns the PCM rate the session's recognizer expects.
func (s *Session) SampleRate() int { return s.sampleRate }

// Status returns the pipeline snapshot.
func (s *Session) Status() dictation.Status { return s.pipeline.Status() }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close tears the session down and releases it from the manager.
func (s *Session) Close() {
	s.manager.release(s)
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.pipeline.Close()
		s.editor.OnFocus(nil)
		if s.metrics != nil {
			s.metrics.release()
		}
		close(s.done)
		slog.Debug("dictation session closed", "note_id", s.noteID)
	})
}

func (s *Session) sync(n *notes.Note) {
	s.editor.SetTitle(n.Title)
	s.editor.SetContent(n.Content)
	s.editor.SetImages(n.Images)
}
