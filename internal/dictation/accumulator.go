package dictation

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Default commit timings.
const (
	DefaultSilence       = 800 * time.Millisecond
	DefaultSentenceGrace = 100 * time.Millisecond
	DefaultClauseGrace   = 200 * time.Millisecond
)

// AccumulatorConfig configures an [Accumulator].
type AccumulatorConfig struct {
	// Silence is how long the buffer may sit without a new final fragment
	// before it is committed. Defaults to 800ms.
	Silence time.Duration

	// SentenceGrace is the delay before committing a buffer that ends a
	// sentence. Defaults to 100ms.
	SentenceGrace time.Duration

	// ClauseGrace is the delay before committing a buffer that ends on a
	// clause boundary. Defaults to 200ms.
	ClauseGrace time.Duration

	// Equal decides whether a buffer repeats the last commit. Defaults to
	// Literal.
	Equal Comparator
}

// Accumulator buffers final fragments and commits them when the speaker
// pauses, finishes a sentence or reaches a clause boundary. Whichever trigger
// fires first commits the whole buffer and cancels the others.
//
// An Accumulator is owned by a Loop; its methods must run on that loop.
type Accumulator struct {
	silence       time.Duration
	sentenceGrace time.Duration
	clauseGrace   time.Duration
	equal         Comparator
	timers        *timerSet
	commit        func(text string)

	buffered      string
	lastCommitted string
	committed     bool
}

// NewAccumulator returns an Accumulator that hands ready utterances to commit.
func NewAccumulator(loop *Loop, clock Clock, cfg AccumulatorConfig, commit func(text string)) *Accumulator {
	a := &Accumulator{
		silence:       cfg.Silence,
		sentenceGrace: cfg.SentenceGrace,
		clauseGrace:   cfg.ClauseGrace,
		equal:         cfg.Equal,
		timers:        newTimerSet(clock, loop),
		commit:        commit,
	}
	if a.silence <= 0 {
		a.silence = DefaultSilence
	}
	if a.sentenceGrace <= 0 {
		a.sentenceGrace = DefaultSentenceGrace
	}
	if a.clauseGrace <= 0 {
		a.clauseGrace = DefaultClauseGrace
	}
	if a.equal == nil {
		a.equal = Literal
	}
	return a
}

// Add feeds one fragment. Interim fragments and blank finals are ignored.
func (a *Accumulator) Add(f Fragment) {
	if !f.IsFinal || strings.TrimSpace(f.Text) == "" {
		return
	}
	a.buffered = join(a.buffered, f.Text)

	a.timers.arm(timerSilence, a.silence, a.Flush)
	switch {
	case endsSentence(a.buffered):
		a.timers.arm(timerSentence, a.sentenceGrace, a.Flush)
	case endsClause(a.buffered), endsClause(a.buffered+" "):
		// The next final is joined with a space, so a buffer ending in a
		// clause word already sits on the boundary.
		a.timers.arm(timerClause, a.clauseGrace, a.Flush)
	}
}

// join appends a final to the buffer with a single separating space unless
// either side already has whitespace at the seam. Providers differ on
// whether later results carry a leading space.
func join(buffered, text string) string {
	if buffered == "" || text == "" || endsWhitespace(buffered) || startsWhitespace(text) {
		return buffered + text
	}
	return buffered + " " + text
}

func endsWhitespace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func startsWhitespace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

// Flush commits the buffer now, unless it is blank or repeats the last
// commit. Every pending trigger is cancelled either way.
func (a *Accumulator) Flush() {
	a.timers.cancelAll()
	text := a.buffered
	a.buffered = ""
	if strings.TrimSpace(text) == "" {
		return
	}
	if a.committed && a.equal(text, a.lastCommitted) {
		return
	}
	a.lastCommitted = text
	a.committed = true
	a.commit(text)
}

// Buffered returns the text waiting to be committed.
func (a *Accumulator) Buffered() string { return a.buffered }

// Discard drops the buffer and every pending trigger without committing.
// The duplicate guard is kept.
func (a *Accumulator) Discard() {
	a.timers.cancelAll()
	a.buffered = ""
}

// Reset discards the buffer and forgets the last commit.
func (a *Accumulator) Reset() {
	a.Discard()
	a.lastCommitted = ""
	a.committed = false
}
