package dictation

import (
	"errors"
	"time"
)

// Mode is the dictation operating mode.
type Mode int

const (
	ModeOff Mode = iota
	// ModeAccumulated buffers speech and commits normalized utterances.
	ModeAccumulated
	// ModeContinuous commits every final fragment immediately.
	ModeContinuous
)

// String returns the mode's wire name.
func (m Mode) String() string {
	switch m {
	case ModeAccumulated:
		return "accumulated"
	case ModeContinuous:
		return "continuous"
	default:
		return "off"
	}
}

// ParseMode parses a wire name. The empty string selects ModeAccumulated.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "accumulated":
		return ModeAccumulated, nil
	case "continuous":
		return ModeContinuous, nil
	}
	return ModeOff, errors.New("dictation: unknown mode " + s)
}

// Timing holds every tunable delay of a pipeline. Zero fields take the
// package defaults.
type Timing struct {
	Silence           time.Duration
	SentenceGrace     time.Duration
	ClauseGrace       time.Duration
	SaveDebounce      time.Duration
	MaxAttempts       int
	Backoff           time.Duration
	MaxBackoff        time.Duration
	ContinuousRestart time.Duration
	ContinuousRetry   time.Duration
	// Equal is the duplicate-commit comparator. Defaults to Literal.
	Equal Comparator
}

func (t Timing) policy() BoundedBackoff {
	b := BoundedBackoff{MaxAttempts: t.MaxAttempts, Base: t.Backoff, Max: t.MaxBackoff}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = DefaultMaxAttempts
	}
	if b.Base <= 0 {
		b.Base = DefaultBackoff
	}
	if b.Max <= 0 {
		b.Max = DefaultMaxBackoff
	}
	return b
}

// Config configures a [Pipeline].
type Config struct {
	NoteID     string
	Host       Host
	Saver      Saver
	Recognizer Recognizer
	Reporter   Reporter
	Observer   Observer
	// Clock defaults to SystemClock.
	Clock  Clock
	Timing Timing
}

// Status is a snapshot of a pipeline.
type Status struct {
	NoteID   string
	Mode     Mode
	State    State
	Attempts int
	Preview  string
}

// Pipeline is the dictation controller for one note. It owns a Loop and runs
// either accumulated or continuous dictation, never both.
//
// All methods are safe for concurrent use. After Close they are no-ops.
type Pipeline struct {
	noteID   string
	loop     *Loop
	observer Observer

	inserter   *Inserter
	acc        *Accumulator
	sup        *Supervisor
	continuous *Continuous

	interim string
	preview string
}

// NewPipeline builds an idle pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Host == nil {
		return nil, errors.New("dictation: host is required")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("dictation: recognizer is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}

	p := &Pipeline{
		noteID:   cfg.NoteID,
		loop:     NewLoop(),
		observer: observer,
	}
	t := cfg.Timing
	p.inserter = NewInserter(p.loop, clock, InserterConfig{
		NoteID:   cfg.NoteID,
		Host:     cfg.Host,
		Saver:    cfg.Saver,
		Debounce: t.SaveDebounce,
		OnCommit: observer.Committed,
	})
	p.acc = NewAccumulator(p.loop, clock, AccumulatorConfig{
		Silence:       t.Silence,
		SentenceGrace: t.SentenceGrace,
		ClauseGrace:   t.ClauseGrace,
		Equal:         t.Equal,
	}, p.commitUtterance)
	p.sup = NewSupervisor(p.loop, clock, SupervisorConfig{
		Recognizer: cfg.Recognizer,
		Policy:     t.policy(),
		Reporter:   cfg.Reporter,
		OnFragment: p.accumulate,
		Observer:   observer,
	})
	p.continuous = NewContinuous(p.loop, clock, p.inserter, ContinuousConfig{
		Recognizer: cfg.Recognizer,
		Reporter:   cfg.Reporter,
		Observer:   observer,
		Policy: ContinuousPolicy{
			RestartDelay: t.ContinuousRestart,
			RetryDelay:   t.ContinuousRetry,
		},
	})
	return p, nil
}

// NoteID returns the note this pipeline writes into.
func (p *Pipeline) NoteID() string { return p.noteID }

// Start begins dictation in mode. Starting a mode that is already active is
// a no-op; starting the other mode stops the active one first.
func (p *Pipeline) Start(mode Mode) {
	switch mode {
	case ModeAccumulated:
		p.StartAccumulated()
	case ModeContinuous:
		p.StartContinuous()
	}
}

// StartAccumulated begins accumulated dictation.
func (p *Pipeline) StartAccumulated() {
	p.loop.Do(func() {
		if p.continuous.Active() {
			p.continuous.Stop()
		}
		p.sup.Start()
	})
}

// StartContinuous begins continuous dictation.
func (p *Pipeline) StartContinuous() {
	p.loop.Do(func() {
		if p.sup.Active() {
			p.stopAccumulated()
		}
		p.continuous.Start()
	})
}

// Stop ends dictation at the user's request. Text not yet committed is
// discarded; committed text that is waiting for its save is saved now.
func (p *Pipeline) Stop() {
	p.loop.Do(p.stop)
}

// Close tears the pipeline down when the user leaves the note. Sessions end
// as on Stop, but a save still waiting for its debounce is dropped. The
// duplicate guard is forgotten and the loop released.
func (p *Pipeline) Close() {
	p.loop.Do(func() {
		p.halt()
		p.inserter.Cancel()
		p.acc.Reset()
	})
	p.loop.Close()
}

// Status returns a snapshot. A closed pipeline reports ModeOff.
func (p *Pipeline) Status() Status {
	st := Status{NoteID: p.noteID}
	p.loop.Do(func() {
		st.Preview = p.preview
		switch {
		case p.sup.Active():
			st.Mode = ModeAccumulated
			st.State = p.sup.State()
			st.Attempts = p.sup.Attempts()
		case p.continuous.Active():
			st.Mode = ModeContinuous
			st.State = p.continuous.Supervisor().State()
			st.Attempts = p.continuous.Supervisor().Attempts()
			st.Preview = p.continuous.Preview()
		}
	})
	return st
}

func (p *Pipeline) stop() {
	p.halt()
	p.inserter.Flush()
}

// halt ends whichever mode is active.
func (p *Pipeline) halt() {
	p.stopAccumulated()
	p.continuous.Stop()
}

func (p *Pipeline) stopAccumulated() {
	p.sup.Stop()
	p.acc.Discard()
	p.interim = ""
	p.setPreview("")
}

// accumulate receives fragments in accumulated mode.
func (p *Pipeline) accumulate(f Fragment) {
	if f.IsFinal {
		p.interim = ""
		p.acc.Add(f)
	} else {
		p.interim = f.Text
	}
	p.setPreview(join(p.acc.Buffered(), p.interim))
}

func (p *Pipeline) commitUtterance(text string) {
	p.inserter.Insert(text, Normalize)
	p.setPreview(p.interim)
}

func (p *Pipeline) setPreview(text string) {
	if p.preview == text {
		return
	}
	p.preview = text
	p.observer.PreviewChanged(text)
}
