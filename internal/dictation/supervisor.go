package dictation

import (
	"context"
	"log/slog"
	"time"
)

// Default restart parameters.
const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 1 * time.Second
	DefaultMaxBackoff  = 10 * time.Second
)

// State is the supervisor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateListening
	StateEnding
	StateRestarting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateEnding:
		return "ending"
	case StateRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// RestartPolicy decides what happens after a session ends on its own.
type RestartPolicy interface {
	// Fatal reports whether kind ends supervision without a restart.
	Fatal(kind ErrorKind) bool
	// Next returns the delay before the next start. attempts is the number
	// of restarts since the last session that reached Listening;
	// startFailures counts the consecutive Start calls that failed. ok is
	// false when supervision should give up.
	Next(attempts, startFailures int) (delay time.Duration, ok bool)
	// ExhaustedMessage is reported when Next gives up.
	ExhaustedMessage() string
}

// BoundedBackoff restarts with exponential backoff, at most MaxAttempts times
// in a row. It is the policy for accumulated dictation.
type BoundedBackoff struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
}

// Fatal implements RestartPolicy. Permission, network and unsupported
// failures are fatal.
func (BoundedBackoff) Fatal(kind ErrorKind) bool {
	switch kind {
	case KindPermissionDenied, KindNetwork, KindUnsupported:
		return true
	}
	return false
}

// Next implements RestartPolicy with delay min(Base*2^attempts, Max).
func (b BoundedBackoff) Next(attempts, _ int) (time.Duration, bool) {
	if attempts >= b.MaxAttempts {
		return 0, false
	}
	d := b.Base
	for i := 0; i < attempts && d < b.Max; i++ {
		d *= 2
	}
	return min(d, b.Max), true
}

// ExhaustedMessage implements RestartPolicy.
func (BoundedBackoff) ExhaustedMessage() string { return MsgRestartsExhausted }

// SupervisorConfig configures a [Supervisor].
type SupervisorConfig struct {
	// Recognizer creates sessions. Required.
	Recognizer Recognizer

	// Policy decides restarts. Defaults to a BoundedBackoff with
	// DefaultMaxAttempts, DefaultBackoff and DefaultMaxBackoff.
	Policy RestartPolicy

	// Reporter receives fatal conditions. May be nil.
	Reporter Reporter

	// OnFragment receives fragments from the active session. May be nil.
	OnFragment func(Fragment)

	// Observer is notified of state changes, errors and restarts. May be nil.
	Observer Observer
}

// Supervisor owns the lifecycle of speech sessions. It keeps at most one
// session active and restarts it when it ends on its own, as long as the
// failure is recoverable and the policy allows it.
//
// A Supervisor is owned by a Loop; its methods must run on that loop.
type Supervisor struct {
	loop       *Loop
	timers     *timerSet
	recognizer Recognizer
	policy     RestartPolicy
	reporter   Reporter
	onFragment func(Fragment)
	observer   Observer

	state         State
	attempts      int
	startFailures int
	userStopped   bool

	// gen identifies the current session; events tagged with an older
	// generation are dropped.
	gen         uint64
	session     Session
	cancelStart context.CancelFunc
	endKind     ErrorKind
}

// NewSupervisor returns an idle Supervisor.
func NewSupervisor(loop *Loop, clock Clock, cfg SupervisorConfig) *Supervisor {
	policy := cfg.Policy
	if policy == nil {
		policy = BoundedBackoff{
			MaxAttempts: DefaultMaxAttempts,
			Base:        DefaultBackoff,
			Max:         DefaultMaxBackoff,
		}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Supervisor{
		loop:       loop,
		timers:     newTimerSet(clock, loop),
		recognizer: cfg.Recognizer,
		policy:     policy,
		reporter:   cfg.Reporter,
		onFragment: cfg.OnFragment,
		observer:   observer,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State { return s.state }

// Attempts returns the number of restarts since the last session that
// reached Listening.
func (s *Supervisor) Attempts() int { return s.attempts }

// Active reports whether the supervisor is not idle.
func (s *Supervisor) Active() bool { return s.state != StateIdle }

// Start begins supervision. It is a no-op unless the supervisor is idle.
func (s *Supervisor) Start() {
	if s.state != StateIdle {
		return
	}
	s.attempts = 0
	s.startFailures = 0
	s.userStopped = false
	s.launch()
}

// Stop ends supervision at the user's request. Pending restarts are
// cancelled and the active session is asked to stop; its remaining events
// are ignored. Stop is never reported as an error.
func (s *Supervisor) Stop() {
	s.userStopped = true
	s.timers.cancelAll()
	s.release()
	s.attempts = 0
	s.startFailures = 0
	s.setState(StateIdle)
}

// release detaches the current session and invalidates its events.
func (s *Supervisor) release() {
	s.gen++
	if s.cancelStart != nil {
		s.cancelStart()
		s.cancelStart = nil
	}
	if s.session != nil {
		s.session.Stop()
		s.session = nil
	}
}

func (s *Supervisor) launch() {
	s.gen++
	gen := s.gen
	s.endKind = KindNone

	sess, err := s.recognizer.NewSession(&sessionEvents{s: s, gen: gen})
	if err != nil {
		kind := KindOf(err)
		slog.Error("dictation: cannot create speech session", "kind", kind, "err", err)
		s.observer.SessionError(kind)
		if kind == KindUnsupported {
			s.report(MsgUnsupported)
		} else {
			s.report(MsgRestartFailed)
		}
		s.setState(StateIdle)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.session = sess
	s.cancelStart = cancel
	s.setState(StateStarting)

	go func() {
		err := sess.Start(ctx)
		s.loop.Post(func() { s.started(gen, sess, err) })
	}()
}

func (s *Supervisor) started(gen uint64, sess Session, err error) {
	if gen != s.gen {
		if err == nil {
			sess.Stop()
		}
		return
	}
	if s.state != StateStarting {
		// The session's own events got here first and already moved the
		// state on.
		return
	}
	if err != nil {
		s.session = nil
		s.startFailures++
		kind := KindOf(err)
		slog.Warn("dictation: speech session failed to start",
			"kind", kind,
			"attempt", s.attempts,
			"err", err,
		)
		s.end(kind)
		return
	}
	s.listen()
}

// listen marks the current session as listening.
func (s *Supervisor) listen() {
	s.attempts = 0
	s.startFailures = 0
	s.setState(StateListening)
}

// current reports whether an event of gen belongs to the current session.
// Events may arrive before Start returns; the first one proves the session
// is listening.
func (s *Supervisor) current(gen uint64) bool {
	if gen != s.gen {
		return false
	}
	if s.state == StateStarting {
		s.listen()
	}
	return true
}

func (s *Supervisor) fragment(gen uint64, f Fragment) {
	if !s.current(gen) || s.state != StateListening {
		return
	}
	if s.onFragment != nil {
		s.onFragment(f)
	}
}

func (s *Supervisor) failed(gen uint64, kind ErrorKind, err error) {
	if !s.current(gen) {
		return
	}
	s.endKind = kind
	if kind != KindNoSpeech {
		slog.Warn("dictation: speech session error", "kind", kind, "err", err)
	}
}

func (s *Supervisor) ended(gen uint64) {
	if !s.current(gen) {
		return
	}
	s.session = nil
	if s.cancelStart != nil {
		s.cancelStart()
		s.cancelStart = nil
	}
	s.end(s.endKind)
}

// end decides between idling and restarting once a session is gone.
func (s *Supervisor) end(kind ErrorKind) {
	s.setState(StateEnding)
	if kind != KindNone {
		s.observer.SessionError(kind)
	}

	switch {
	case s.userStopped || kind == KindAborted:
		s.setState(StateIdle)
		return
	case s.policy.Fatal(kind):
		s.report(fatalMessage(kind))
		s.setState(StateIdle)
		return
	}

	delay, ok := s.policy.Next(s.attempts, s.startFailures)
	if !ok {
		slog.Error("dictation: giving up on speech recognition",
			"attempts", s.attempts,
			"start_failures", s.startFailures,
		)
		s.report(s.policy.ExhaustedMessage())
		s.setState(StateIdle)
		return
	}

	s.attempts++
	slog.Info("dictation: restarting speech session",
		"attempt", s.attempts,
		"delay", delay,
		"after", kind,
	)
	s.observer.Restarting(s.attempts, delay)
	s.setState(StateRestarting)
	s.timers.arm(timerBackoff, delay, s.restart)
}

func (s *Supervisor) restart() {
	if s.userStopped || s.state != StateRestarting {
		return
	}
	s.launch()
}

func (s *Supervisor) setState(st State) {
	if s.state == st {
		return
	}
	s.state = st
	s.observer.StateChanged(st)
}

func (s *Supervisor) report(msg string) {
	if s.reporter != nil {
		s.reporter.ReportError(msg)
	}
}

// sessionEvents forwards callbacks of one session generation onto the loop.
type sessionEvents struct {
	s   *Supervisor
	gen uint64
}

func (e *sessionEvents) OnFragment(f Fragment) {
	e.s.loop.Post(func() { e.s.fragment(e.gen, f) })
}

func (e *sessionEvents) OnError(kind ErrorKind, err error) {
	e.s.loop.Post(func() { e.s.failed(e.gen, kind, err) })
}

func (e *sessionEvents) OnEnd() {
	e.s.loop.Post(func() { e.s.ended(e.gen) })
}
