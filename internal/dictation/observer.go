package dictation

import "time"

// Observer is notified of pipeline activity. Calls happen on the pipeline's
// Loop; implementations must not block and must not call back into the
// Pipeline.
type Observer interface {
	StateChanged(st State)
	SessionError(kind ErrorKind)
	Restarting(attempt int, delay time.Duration)
	// PreviewChanged carries the live, not yet committed transcription.
	PreviewChanged(text string)
	// Committed is called after text was inserted; cursor is the new cursor.
	Committed(text string, cursor int)
}

// NopObserver ignores every notification. Embed it to implement only part of
// Observer.
type NopObserver struct{}

func (NopObserver) StateChanged(State)            {}
func (NopObserver) SessionError(ErrorKind)        {}
func (NopObserver) Restarting(int, time.Duration) {}
func (NopObserver) PreviewChanged(string)         {}
func (NopObserver) Committed(string, int)         {}
