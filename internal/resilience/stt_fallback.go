package resilience

import (
	"context"

	"github.com/MrWong99/dictanote/pkg/provider/stt"
)

// STTFallback is the speech backend behind the dictation recognizer. The
// configured stt provider is tried first, then each stt_fallbacks entry, each
// behind its own breaker.
//
// Failover happens only when a dictation session opens its stream. A stream
// that drops mid-utterance ends the session, and the dictation supervisor
// restarts it, which goes through StartStream again.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback wraps the configured stt provider, registered as primaryName.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback appends a backend from the stt_fallbacks list.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens the stream for one dictation session. When every backend
// fails the error keeps the last cause, so the recognizer can still tell a
// rejected key from a network outage.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(ctx, f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// Status lists each speech backend with its breaker state.
func (f *STTFallback) Status() []EntryStatus { return f.group.Status() }
