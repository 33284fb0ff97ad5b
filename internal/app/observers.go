package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/internal/observe"
)

// observers fans pipeline notifications out to several observers in order.
type observers []dictation.Observer

var _ dictation.Observer = observers(nil)

func (o observers) StateChanged(st dictation.State) {
	for _, ob := range o {
		ob.StateChanged(st)
	}
}

func (o observers) SessionError(kind dictation.ErrorKind) {
	for _, ob := range o {
		ob.SessionError(kind)
	}
}

func (o observers) Restarting(attempt int, delay time.Duration) {
	for _, ob := range o {
		ob.Restarting(attempt, delay)
	}
}

func (o observers) PreviewChanged(text string) {
	for _, ob := range o {
		ob.PreviewChanged(text)
	}
}

func (o observers) Committed(text string, cursor int) {
	for _, ob := range o {
		ob.Committed(text, cursor)
	}
}

// metricsObserver turns pipeline notifications into metrics. The mode label
// is set by the session before each start because observers must not call
// back into the pipeline.
type metricsObserver struct {
	metrics *observe.Metrics
	mode    atomic.Int32
	// listening tracks whether this pipeline currently counts toward
	// ActiveDictations. Only touched from the pipeline loop.
	listening bool
}

var _ dictation.Observer = (*metricsObserver)(nil)

func (m *metricsObserver) setMode(mode dictation.Mode) { m.mode.Store(int32(mode)) }

func (m *metricsObserver) modeLabel() string { return dictation.Mode(m.mode.Load()).String() }

func (m *metricsObserver) StateChanged(st dictation.State) {
	active := st != dictation.StateIdle
	if active == m.listening {
		return
	}
	m.listening = active
	delta := int64(1)
	if !active {
		delta = -1
	}
	m.metrics.ActiveDictations.Add(context.Background(), delta)
}

func (m *metricsObserver) SessionError(kind dictation.ErrorKind) {
	m.metrics.RecordSessionError(context.Background(), kind.String())
}

func (m *metricsObserver) Restarting(int, time.Duration) {
	m.metrics.RecordRestart(context.Background(), m.modeLabel())
}

func (m *metricsObserver) PreviewChanged(string) {}

func (m *metricsObserver) Committed(string, int) {
	m.metrics.RecordCommit(context.Background(), m.modeLabel())
}

// release drops this pipeline from ActiveDictations when it is torn down
// without passing through idle.
func (m *metricsObserver) release() {
	if m.listening {
		m.listening = false
		m.metrics.ActiveDictations.Add(context.Background(), -1)
	}
}
