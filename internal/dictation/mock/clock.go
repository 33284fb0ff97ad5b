// Package mock provides test doubles for the dictation package interfaces.
//
// Clock is a manual time source. Timers fire synchronously inside Advance;
// because dictation timer callbacks only post work onto a Loop, tests follow
// each Advance with loop.Sync (or Pipeline.Status) before asserting.
//
// Recognizer and Session let tests drive the speech event stream by hand:
//
//	rec := &mock.Recognizer{}
//	p, _ := dictation.NewPipeline(dictation.Config{Recognizer: rec, ...})
//	p.StartAccumulated()
//	sess := rec.WaitSession(t, 0)
//	sess.Emit("turn off the lights", true)
package mock

import (
	"sort"
	"sync"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
)

// Clock is a manual dictation.Clock.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

type timer struct {
	c       *Clock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

// NewClock returns a Clock starting at an arbitrary fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now implements dictation.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements dictation.Clock.
func (c *Clock) AfterFunc(d time.Duration, f func()) dictation.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing due timers in deadline order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *timer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.compact()
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the remaining duration of every live timer, shortest first.
func (c *Clock) Pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.at.Sub(c.now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// compact drops finished timers. Must be called with mu held.
func (c *Clock) compact() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
}

var _ dictation.Clock = (*Clock)(nil)
