// Package dictation turns a live, error-prone speech stream into stable text
// inserted at a cursor position.
//
// The package is built from five cooperating parts that all run on one
// [Loop]: a [Supervisor] owns speech sessions and restarts them with bounded
// backoff, an [Accumulator] decides when buffered speech is ready, an
// [Inserter] splices text into the host buffer and debounces saves, and a
// [Continuous] controller commits every final fragment immediately and never
// gives up on transient failures. [Pipeline] ties them together for one note
// and is the only goroutine-safe entry point.
package dictation

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by a Recognizer when no speech capability is
// available.
var ErrUnsupported = errors.New("dictation: speech recognition is not supported")

// Fragment is one recognition result.
type Fragment struct {
	// Text is the recognized text, exactly as the recognizer produced it.
	Text string
	// IsFinal reports whether the recognizer committed to this result.
	IsFinal bool
	// Seq is the emission index within the session, starting at 0.
	Seq int
}

// ErrorKind classifies why a session failed.
type ErrorKind int

const (
	// KindNone means the session ended without an error.
	KindNone ErrorKind = iota
	// KindPermissionDenied covers denied microphone or service access.
	KindPermissionDenied
	// KindNoSpeech means the recognizer gave up waiting for speech.
	KindNoSpeech
	// KindNetwork means the recognition service was unreachable.
	KindNetwork
	// KindAborted means the session was stopped on request.
	KindAborted
	// KindUnsupported means no recognizer is available.
	KindUnsupported
	// KindOther is any other failure. It is always recoverable.
	KindOther
)

// String returns the kind's wire name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPermissionDenied:
		return "permission-denied"
	case KindNoSpeech:
		return "no-speech"
	case KindNetwork:
		return "network"
	case KindAborted:
		return "aborted"
	case KindUnsupported:
		return "unsupported"
	default:
		return "other"
	}
}

// Events receives the callbacks of one Session. Implementations must not
// block.
type Events interface {
	// OnFragment is called for every recognition result, in emission order.
	OnFragment(f Fragment)
	// OnError is called at most once, before OnEnd, when the session fails.
	OnError(kind ErrorKind, err error)
	// OnEnd is called exactly once after a successful Start, whatever the
	// cause of the end.
	OnEnd()
}

// Session is one attempt at continuous recognition.
type Session interface {
	// Start acquires audio capture and opens the recognition stream. It
	// blocks until the session is listening or has failed. When Start
	// returns an error no events are delivered. A successful session may
	// deliver events before Start returns; the supervisor takes the first
	// one as the session listening.
	Start(ctx context.Context) error
	// Stop requests graceful termination. It must not block. Stop may be
	// called before Start returns and more than once.
	Stop()
}

// Recognizer is the speech capability.
type Recognizer interface {
	// NewSession prepares a session delivering to ev. It returns an error
	// wrapping ErrUnsupported when the capability is absent.
	NewSession(ev Events) (Session, error)
}

// KindError attaches an ErrorKind to an error returned from Session.Start.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return "dictation: " + e.Kind.String()
	}
	return e.Err.Error()
}

func (e *KindError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind carried by err. Errors without a kind are
// KindOther; context cancellation is KindAborted.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	switch {
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, context.Canceled):
		return KindAborted
	}
	return KindOther
}

// Reporter surfaces fatal conditions to the user.
type Reporter interface {
	ReportError(message string)
}

// User-visible messages for fatal conditions.
const (
	MsgPermissionDenied  = "Microphone access denied. Please allow microphone access."
	MsgNetwork           = "Network error. Please check your internet connection."
	MsgUnsupported       = "Speech recognition is not supported by this server."
	MsgRestartsExhausted = "Speech recognition stopped after multiple restart attempts. Please try again."
	MsgRestartFailed     = "Speech recognition failed to restart. Please try again."
	MsgContinuousFailed  = "Continuous mode failed to restart. Please try again."
)

func fatalMessage(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return MsgPermissionDenied
	case KindNetwork:
		return MsgNetwork
	case KindUnsupported:
		return MsgUnsupported
	default:
		return MsgRestartFailed
	}
}
