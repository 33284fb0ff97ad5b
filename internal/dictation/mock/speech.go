package mock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
)

// Recognizer is a mock implementation of dictation.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// NewSessionErr, if non-nil, is returned by NewSession.
	NewSessionErr error

	// StartErrs holds the error returned by Start of the n-th created
	// session. Sessions beyond the slice start successfully.
	StartErrs []error

	// DuringStart, if set, runs inside a successful Start before it returns,
	// the way a recognizer whose reader is already running can deliver events
	// early.
	DuringStart func(s *Session)

	sessions []*Session
}

// NewSession records a new Session.
func (r *Recognizer) NewSession(ev dictation.Events) (dictation.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.NewSessionErr != nil {
		return nil, r.NewSessionErr
	}
	s := &Session{ev: ev, index: len(r.sessions), duringStart: r.DuringStart}
	if s.index < len(r.StartErrs) {
		s.startErr = r.StartErrs[s.index]
	}
	r.sessions = append(r.sessions, s)
	return s, nil
}

// Count returns how many sessions were created.
func (r *Recognizer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Session returns the i-th created session or nil.
func (r *Recognizer) Session(i int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.sessions) {
		return nil
	}
	return r.sessions[i]
}

// WaitSession waits until the i-th session has returned from Start and
// returns it. It fails the test after two seconds.
func (r *Recognizer) WaitSession(t testing.TB, i int) *Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s := r.Session(i); s != nil && s.StartReturned() {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("session %d was not started (created %d)", i, r.Count())
	return nil
}

var _ dictation.Recognizer = (*Recognizer)(nil)

// Session is a mock implementation of dictation.Session. Stop ends a started
// session by calling OnEnd, like a real recognizer does.
type Session struct {
	mu       sync.Mutex
	ev       dictation.Events
	index    int
	startErr error
	seq      int

	duringStart func(s *Session)

	startCalls int
	stopCalls  int
	returned   bool
	started    bool
	ended      bool
}

// Start implements dictation.Session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.startCalls++
	if s.startErr != nil {
		s.returned = true
		s.mu.Unlock()
		return s.startErr
	}
	s.started = true
	s.mu.Unlock()

	if s.duringStart != nil {
		s.duringStart(s)
	}
	s.mu.Lock()
	s.returned = true
	s.mu.Unlock()
	return nil
}

// Index returns the position of the session among those created.
func (s *Session) Index() int { return s.index }

// Stop implements dictation.Session.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopCalls++
	s.mu.Unlock()
	s.End()
}

// Emit delivers a fragment.
func (s *Session) Emit(text string, final bool) {
	s.mu.Lock()
	f := dictation.Fragment{Text: text, IsFinal: final, Seq: s.seq}
	s.seq++
	s.mu.Unlock()
	s.ev.OnFragment(f)
}

// Fail delivers an error followed by the end of the session.
func (s *Session) Fail(kind dictation.ErrorKind, err error) {
	s.ev.OnError(kind, err)
	s.End()
}

// End delivers OnEnd once for a started session.
func (s *Session) End() {
	s.mu.Lock()
	if !s.started || s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.mu.Unlock()
	s.ev.OnEnd()
}

// StartReturned reports whether Start has been called.
func (s *Session) StartReturned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.returned
}

// StopCalls returns the number of Stop calls.
func (s *Session) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// Ended reports whether OnEnd was delivered.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

var _ dictation.Session = (*Session)(nil)
