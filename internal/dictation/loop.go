package dictation

import "sync"

// Loop runs posted closures one at a time on a single goroutine. All pipeline
// state is owned by a Loop; session callbacks, timer expiries and commands
// reach that state only through Post or Do.
//
// Post never blocks, so it is safe to call from inside a closure that is
// already running on the loop.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake     chan struct{}
	finished chan struct{}
}

// NewLoop starts a Loop.
func NewLoop() *Loop {
	l := &Loop{
		wake:     make(chan struct{}, 1),
		finished: make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues fn. It reports false if the loop has been closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return. It reports false if the
// loop was closed before fn ran. Do must not be called from the loop itself.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.finished:
		// fn may have been the last closure before shutdown.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Sync waits until every closure posted before the call has run.
func (l *Loop) Sync() { l.Do(func() {}) }

// Close stops the loop once the closures already queued have run. Later
// posts are dropped. Close blocks until the loop goroutine exits and is safe
// to call more than once, but not from the loop itself.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
	l.mu.Unlock()
	<-l.finished
}

func (l *Loop) run() {
	defer close(l.finished)
	for range l.wake {
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				closed := l.closed
				l.mu.Unlock()
				if closed {
					return
				}
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
		}
	}
}
