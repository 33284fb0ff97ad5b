package dictation_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/dictation/mock"
)

type supHarness struct {
	loop  *dictation.Loop
	clock *mock.Clock
	rec   *mock.Recognizer
	rep   *mock.Reporter
	obs   *mock.Observer
	sup   *dictation.Supervisor
	frags []dictation.Fragment
}

func newSupHarness(t *testing.T, rec *mock.Recognizer, policy dictation.RestartPolicy) *supHarness {
	t.Helper()
	h := &supHarness{
		loop:  dictation.NewLoop(),
		clock: mock.NewClock(),
		rec:   rec,
		rep:   &mock.Reporter{},
		obs:   &mock.Observer{},
	}
	h.sup = dictation.NewSupervisor(h.loop, h.clock, dictation.SupervisorConfig{
		Recognizer: rec,
		Policy:     policy,
		Reporter:   h.rep,
		Observer:   h.obs,
		OnFragment: func(f dictation.Fragment) { h.frags = append(h.frags, f) },
	})
	t.Cleanup(h.loop.Close)
	return h
}

func (h *supHarness) state() dictation.State {
	var st dictation.State
	h.loop.Do(func() { st = h.sup.State() })
	return st
}

func (h *supHarness) attempts() int {
	var n int
	h.loop.Do(func() { n = h.sup.Attempts() })
	return n
}

func (h *supHarness) start() { h.loop.Do(h.sup.Start) }

func (h *supHarness) stop() { h.loop.Do(h.sup.Stop) }

func (h *supHarness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.loop.Sync()
}

// listening waits until the n-th session is listening and returns it.
func (h *supHarness) listening(t *testing.T, n int) *mock.Session {
	t.Helper()
	eventually(t, "listening session", func() bool {
		return h.rec.Count() == n+1 && h.state() == dictation.StateListening
	})
	return h.rec.Session(n)
}

func TestSupervisor_StartReachesListening(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	sess := h.listening(t, 0)

	sess.Emit("hel", false)
	sess.Emit("hello", true)
	h.loop.Sync()

	var frags []dictation.Fragment
	h.loop.Do(func() { frags = slices.Clone(h.frags) })
	if len(frags) != 2 || frags[0].Text != "hel" || frags[0].IsFinal || !frags[1].IsFinal || frags[1].Seq != 1 {
		t.Errorf("fragments = %+v", frags)
	}

	states := h.obs.States()
	if !slices.Equal(states, []dictation.State{dictation.StateStarting, dictation.StateListening}) {
		t.Errorf("states = %v", states)
	}
}

func TestSupervisor_EventsBeforeStartReturns(t *testing.T) {
	t.Parallel()
	rec := &mock.Recognizer{DuringStart: func(s *mock.Session) {
		if s.Index() != 0 {
			return
		}
		s.Emit("hello there.", true)
		s.End()
		time.Sleep(20 * time.Millisecond)
	}}
	h := newSupHarness(t, rec, nil)

	h.start()
	eventually(t, "first start returned", func() bool {
		s := rec.Session(0)
		return s != nil && s.StartReturned()
	})
	// Let the late Start result reach the loop.
	time.Sleep(10 * time.Millisecond)
	h.loop.Sync()

	var frags []dictation.Fragment
	h.loop.Do(func() { frags = slices.Clone(h.frags) })
	if len(frags) != 1 || frags[0].Text != "hello there." || !frags[0].IsFinal {
		t.Errorf("fragments = %+v, want the early final", frags)
	}
	if st := h.state(); st != dictation.StateRestarting {
		t.Fatalf("state = %v, want restarting", st)
	}
	if p := h.clock.Pending(); !slices.Equal(p, []time.Duration{time.Second}) {
		t.Fatalf("pending timers = %v, want [1s]", p)
	}

	h.advance(time.Second)
	h.listening(t, 1)
	if n := h.attempts(); n != 0 {
		t.Errorf("attempts after second session listened = %d, want 0", n)
	}
}

func TestSupervisor_FragmentBeforeStartReturns(t *testing.T) {
	t.Parallel()
	rec := &mock.Recognizer{DuringStart: func(s *mock.Session) {
		s.Emit("early", true)
		time.Sleep(20 * time.Millisecond)
	}}
	h := newSupHarness(t, rec, nil)

	h.start()
	sess := h.listening(t, 0)
	eventually(t, "start returned", sess.StartReturned)
	time.Sleep(10 * time.Millisecond)
	sess.Emit("late", true)
	h.loop.Sync()

	var texts []string
	h.loop.Do(func() {
		for _, f := range h.frags {
			texts = append(texts, f.Text)
		}
	})
	assertStrings(t, "fragments", texts, []string{"early", "late"})

	states := h.obs.States()
	if !slices.Equal(states, []dictation.State{dictation.StateStarting, dictation.StateListening}) {
		t.Errorf("states = %v, want a single listening transition", states)
	}
	if st := h.state(); st != dictation.StateListening {
		t.Errorf("state = %v, want listening", st)
	}
}

func TestSupervisor_StartWhileActiveIsNoop(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	h.listening(t, 0)
	h.start()
	h.start()
	h.loop.Sync()

	if n := h.rec.Count(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
	if st := h.state(); st != dictation.StateListening {
		t.Errorf("state = %v, want listening", st)
	}
}

func TestSupervisor_BackoffThenExhausted(t *testing.T) {
	t.Parallel()
	boom := errors.New("audio device busy")
	rec := &mock.Recognizer{StartErrs: []error{nil, boom, boom, boom, boom, boom}}
	h := newSupHarness(t, rec, nil)

	h.start()
	sess := h.listening(t, 0)
	sess.Fail(dictation.KindOther, errors.New("stream dropped"))
	h.loop.Sync()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
	}
	for i, d := range want {
		eventually(t, "restart scheduled", func() bool { return len(h.obs.Restarts()) == i+1 })
		r := h.obs.Restarts()[i]
		if r.Attempt != i+1 || r.Delay != d {
			t.Fatalf("restart %d = %+v, want attempt %d delay %v", i, r, i+1, d)
		}
		if st := h.state(); st != dictation.StateRestarting {
			t.Fatalf("state = %v, want restarting", st)
		}
		h.advance(d - time.Millisecond)
		if n := rec.Count(); n != i+1 {
			t.Fatalf("restarted early: sessions = %d, want %d", n, i+1)
		}
		h.advance(time.Millisecond)
	}

	eventually(t, "idle after exhaustion", func() bool { return h.state() == dictation.StateIdle })
	assertStrings(t, "reports", h.rep.Messages(), []string{dictation.MsgRestartsExhausted})
	if n := rec.Count(); n != 6 {
		t.Errorf("sessions = %d, want 6", n)
	}
	if p := h.clock.Pending(); len(p) != 0 {
		t.Errorf("pending timers = %v", p)
	}
}

func TestSupervisor_ListeningResetsAttempts(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	h.listening(t, 0).Fail(dictation.KindNoSpeech, nil)
	h.loop.Sync()
	if n := h.attempts(); n != 1 {
		t.Fatalf("attempts = %d, want 1", n)
	}

	h.advance(time.Second)
	h.listening(t, 1)
	if n := h.attempts(); n != 0 {
		t.Fatalf("attempts after listening = %d, want 0", n)
	}

	h.rec.Session(1).End()
	h.loop.Sync()
	restarts := h.obs.Restarts()
	if len(restarts) != 2 || restarts[1].Delay != time.Second {
		t.Errorf("restarts = %+v, want second restart after 1s", restarts)
	}
}

func TestSupervisor_FatalErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind dictation.ErrorKind
		want string
	}{
		{dictation.KindPermissionDenied, dictation.MsgPermissionDenied},
		{dictation.KindNetwork, dictation.MsgNetwork},
		{dictation.KindUnsupported, dictation.MsgUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			h := newSupHarness(t, &mock.Recognizer{}, nil)
			h.start()
			h.listening(t, 0).Fail(tt.kind, errors.New("fatal"))
			h.loop.Sync()

			if st := h.state(); st != dictation.StateIdle {
				t.Errorf("state = %v, want idle", st)
			}
			assertStrings(t, "reports", h.rep.Messages(), []string{tt.want})
			if len(h.obs.Restarts()) != 0 || len(h.clock.Pending()) != 0 {
				t.Error("fatal error scheduled a restart")
			}
		})
	}
}

func TestSupervisor_AbortedIsSilent(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	h.listening(t, 0).Fail(dictation.KindAborted, nil)
	h.loop.Sync()

	if st := h.state(); st != dictation.StateIdle {
		t.Errorf("state = %v, want idle", st)
	}
	if msgs := h.rep.Messages(); len(msgs) != 0 {
		t.Errorf("reports = %q, want none", msgs)
	}
}

func TestSupervisor_UserStop(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	sess := h.listening(t, 0)
	h.stop()
	h.loop.Sync()

	if sess.StopCalls() != 1 {
		t.Errorf("session Stop calls = %d, want 1", sess.StopCalls())
	}
	if st := h.state(); st != dictation.StateIdle {
		t.Errorf("state = %v, want idle", st)
	}
	h.advance(time.Minute)
	if n := h.rec.Count(); n != 1 {
		t.Errorf("sessions after stop = %d, want 1", n)
	}
	if msgs := h.rep.Messages(); len(msgs) != 0 {
		t.Errorf("reports = %q, want none", msgs)
	}

	// Events from the stopped session are ignored.
	sess.Emit("late", true)
	h.loop.Sync()
	var n int
	h.loop.Do(func() { n = len(h.frags) })
	if n != 0 {
		t.Errorf("fragments after stop = %d, want 0", n)
	}
}

func TestSupervisor_StopCancelsPendingRestart(t *testing.T) {
	t.Parallel()
	h := newSupHarness(t, &mock.Recognizer{}, nil)

	h.start()
	h.listening(t, 0).End()
	h.loop.Sync()
	if st := h.state(); st != dictation.StateRestarting {
		t.Fatalf("state = %v, want restarting", st)
	}

	h.stop()
	h.advance(time.Minute)
	if n := h.rec.Count(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
	if st := h.state(); st != dictation.StateIdle {
		t.Errorf("state = %v, want idle", st)
	}

	// A later Start begins fresh.
	h.start()
	h.listening(t, 1)
}

func TestSupervisor_UnsupportedRecognizer(t *testing.T) {
	t.Parallel()
	rec := &mock.Recognizer{NewSessionErr: dictation.ErrUnsupported}
	h := newSupHarness(t, rec, nil)

	h.start()
	if st := h.state(); st != dictation.StateIdle {
		t.Errorf("state = %v, want idle", st)
	}
	assertStrings(t, "reports", h.rep.Messages(), []string{dictation.MsgUnsupported})
}

func TestBoundedBackoff_Next(t *testing.T) {
	t.Parallel()
	b := dictation.BoundedBackoff{MaxAttempts: 5, Base: time.Second, Max: 10 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for attempts, w := range want {
		d, ok := b.Next(attempts, 0)
		if !ok || d != w {
			t.Errorf("Next(%d) = %v, %v; want %v, true", attempts, d, ok, w)
		}
	}
	if _, ok := b.Next(5, 0); ok {
		t.Error("Next(5) should give up")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want dictation.ErrorKind
	}{
		{nil, dictation.KindNone},
		{&dictation.KindError{Kind: dictation.KindNetwork, Err: errors.New("dial")}, dictation.KindNetwork},
		{dictation.ErrUnsupported, dictation.KindUnsupported},
		{errors.New("whatever"), dictation.KindOther},
	}
	for _, tt := range tests {
		if got := dictation.KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
