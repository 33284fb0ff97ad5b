package dictation

import (
	"strings"
	"time"
)

// Default continuous mode restart delays.
const (
	DefaultContinuousRestart = 100 * time.Millisecond
	DefaultContinuousRetry   = 1 * time.Second
)

// ContinuousPolicy restarts every recoverable end after a fixed delay, with no
// attempt ceiling. Only a start that fails twice in a row gives up.
type ContinuousPolicy struct {
	// RestartDelay is the delay after a session ended. Defaults to 100ms.
	RestartDelay time.Duration
	// RetryDelay is the delay after a failed start. Defaults to 1s.
	RetryDelay time.Duration
}

// Fatal implements RestartPolicy. Only denied capture and a missing
// recognizer stop continuous mode.
func (ContinuousPolicy) Fatal(kind ErrorKind) bool {
	return kind == KindPermissionDenied || kind == KindUnsupported
}

// Next implements RestartPolicy.
func (p ContinuousPolicy) Next(_, startFailures int) (time.Duration, bool) {
	switch startFailures {
	case 0:
		return orDefault(p.RestartDelay, DefaultContinuousRestart), true
	case 1:
		return orDefault(p.RetryDelay, DefaultContinuousRetry), true
	default:
		return 0, false
	}
}

// ExhaustedMessage implements RestartPolicy.
func (ContinuousPolicy) ExhaustedMessage() string { return MsgContinuousFailed }

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// ContinuousConfig configures a [Continuous] controller.
type ContinuousConfig struct {
	Recognizer Recognizer
	Reporter   Reporter
	Observer   Observer
	Policy     ContinuousPolicy
}

// Continuous is the never-stopping dictation mode. Every final fragment is
// inserted immediately with space padding only, and sessions are restarted
// until the user stops or capture is denied.
//
// A Continuous controller is owned by a Loop; its methods must run on that
// loop.
type Continuous struct {
	sup      *Supervisor
	inserter *Inserter
	observer Observer
	preview  string
}

// NewContinuous returns an idle controller writing through inserter.
func NewContinuous(loop *Loop, clock Clock, inserter *Inserter, cfg ContinuousConfig) *Continuous {
	c := &Continuous{inserter: inserter, observer: cfg.Observer}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	c.sup = NewSupervisor(loop, clock, SupervisorConfig{
		Recognizer: cfg.Recognizer,
		Policy:     cfg.Policy,
		Reporter:   cfg.Reporter,
		OnFragment: c.handle,
		Observer:   c.observer,
	})
	return c
}

// Start begins continuous dictation. A no-op while already active.
func (c *Continuous) Start() { c.sup.Start() }

// Stop ends continuous dictation and clears the live preview.
func (c *Continuous) Stop() {
	c.sup.Stop()
	c.setPreview("")
}

// Active reports whether continuous mode is running.
func (c *Continuous) Active() bool { return c.sup.Active() }

// Supervisor returns the underlying supervisor.
func (c *Continuous) Supervisor() *Supervisor { return c.sup }

// Preview returns the live transcription shown before commit.
func (c *Continuous) Preview() string { return c.preview }

func (c *Continuous) handle(f Fragment) {
	if !f.IsFinal {
		c.setPreview(f.Text)
		return
	}
	if strings.TrimSpace(f.Text) == "" {
		return
	}
	c.inserter.Insert(f.Text, PadSpaces)
	c.setPreview("")
}

func (c *Continuous) setPreview(text string) {
	if c.preview == text {
		return
	}
	c.preview = text
	c.observer.PreviewChanged(text)
}
