package dictation

import "time"

// Timer names. A component arms at most one timer per name.
const (
	timerSilence  = "silence"
	timerSentence = "sentence"
	timerClause   = "clause"
	timerBackoff  = "backoff"
	timerSave     = "save"
)

// timerSet is a group of named, cancelable timers whose callbacks run on a
// Loop. Arming a name cancels the timer previously armed under it. A callback
// whose timer was cancelled or superseded never runs, even if its clock
// already fired.
//
// A timerSet is owned by one component and must only be used from its Loop.
type timerSet struct {
	clock  Clock
	loop   *Loop
	seq    uint64
	active map[string]armed
}

type armed struct {
	timer Timer
	seq   uint64
}

func newTimerSet(clock Clock, loop *Loop) *timerSet {
	return &timerSet{
		clock:  clock,
		loop:   loop,
		active: make(map[string]armed),
	}
}

// arm schedules fn to run on the loop after d under name.
func (ts *timerSet) arm(name string, d time.Duration, fn func()) {
	ts.cancel(name)
	ts.seq++
	seq := ts.seq
	t := ts.clock.AfterFunc(d, func() {
		ts.loop.Post(func() {
			cur, ok := ts.active[name]
			if !ok || cur.seq != seq {
				return
			}
			delete(ts.active, name)
			fn()
		})
	})
	ts.active[name] = armed{timer: t, seq: seq}
}

// cancel stops the timer armed under name, if any.
func (ts *timerSet) cancel(name string) {
	if cur, ok := ts.active[name]; ok {
		cur.timer.Stop()
		delete(ts.active, name)
	}
}

// cancelAll stops every armed timer.
func (ts *timerSet) cancelAll() {
	for name, cur := range ts.active {
		cur.timer.Stop()
		delete(ts.active, name)
	}
}

// pending reports whether a timer is armed under name.
func (ts *timerSet) pending(name string) bool {
	_, ok := ts.active[name]
	return ok
}
