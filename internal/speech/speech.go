// Package speech implements dictation.Recognizer on top of a streaming
// stt.Provider fed by an AudioSource.
//
// Each dictation session claims the microphone from the AudioSource, opens one
// provider stream and forwards captured PCM into it. Transcripts come back as
// dictation fragments; the stream's terminal error is classified into a
// dictation.ErrorKind so the supervisor can decide whether to restart.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/dictanote/internal/dictation"
	"github.com/MrWong99/dictanote/pkg/provider/stt"
)

var (
	// ErrPermissionDenied is returned by an AudioSource when the user refused
	// microphone access.
	ErrPermissionDenied = errors.New("speech: microphone permission denied")

	// ErrCaptureLost reports that audio capture ended while a session was
	// listening.
	ErrCaptureLost = errors.New("speech: audio capture ended")
)

// Capture is a claimed microphone.
type Capture interface {
	// Frames delivers raw 16-bit little-endian PCM. It is closed when capture
	// ends on the client side.
	Frames() <-chan []byte
	// Close releases the microphone. Safe to call more than once.
	Close()
}

// AudioSource hands out microphone captures.
type AudioSource interface {
	// Acquire blocks until the user granted or refused microphone access, or
	// ctx is done. A refusal returns an error wrapping ErrPermissionDenied.
	Acquire(ctx context.Context) (Capture, error)
}

// Recognizer is a dictation.Recognizer over an stt.Provider.
type Recognizer struct {
	provider stt.Provider
	source   AudioSource
	cfg      stt.StreamConfig
}

var _ dictation.Recognizer = (*Recognizer)(nil)

// NewRecognizer returns a Recognizer. A nil provider makes every NewSession
// fail with dictation.ErrUnsupported.
func NewRecognizer(provider stt.Provider, source AudioSource, cfg stt.StreamConfig) *Recognizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Recognizer{provider: provider, source: source, cfg: cfg}
}

// NewSession implements dictation.Recognizer.
func (r *Recognizer) NewSession(ev dictation.Events) (dictation.Session, error) {
	if r.provider == nil || r.source == nil {
		return nil, fmt.Errorf("speech: no provider configured: %w", dictation.ErrUnsupported)
	}
	return &session{r: r, ev: ev}, nil
}

// Classify maps an stt or capture error to a dictation.ErrorKind.
func Classify(err error) dictation.ErrorKind {
	switch {
	case err == nil:
		return dictation.KindNone
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrCaptureLost), errors.Is(err, stt.ErrUnauthorized):
		return dictation.KindPermissionDenied
	case errors.Is(err, stt.ErrNoSpeech):
		return dictation.KindNoSpeech
	case errors.Is(err, stt.ErrNetwork):
		return dictation.KindNetwork
	case errors.Is(err, context.Canceled), errors.Is(err, stt.ErrSessionClosed):
		return dictation.KindAborted
	}
	return dictation.KindOther
}

type session struct {
	r  *Recognizer
	ev dictation.Events

	mu          sync.Mutex
	stopped     bool
	captureLost bool
	capture     Capture
	handle      stt.SessionHandle
	cancel      context.CancelFunc
}

func (s *session) Start(ctx context.Context) error {
	capture, err := s.r.source.Acquire(ctx)
	if err != nil {
		return &dictation.KindError{Kind: Classify(err), Err: err}
	}
	handle, err := s.r.provider.StartStream(ctx, s.r.cfg)
	if err != nil {
		capture.Close()
		return &dictation.KindError{Kind: Classify(err), Err: err}
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		capture.Close()
		handle.Close()
		return &dictation.KindError{Kind: dictation.KindAborted, Err: context.Canceled}
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.capture, s.handle, s.cancel = capture, handle, cancel
	s.mu.Unlock()

	go s.pump(pumpCtx, capture, handle)
	go s.read(handle)
	return nil
}

func (s *session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.capture != nil {
		s.capture.Close()
	}
	if h := s.handle; h != nil {
		// Close flushes the provider stream and may wait on the network.
		go h.Close()
	}
}

// pump forwards captured audio into the provider stream.
func (s *session) pump(ctx context.Context, capture Capture, handle stt.SessionHandle) {
	frames := capture.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				s.mu.Lock()
				s.captureLost = !s.stopped
				s.mu.Unlock()
				handle.Close()
				return
			}
			if err := handle.SendAudio(frame); err != nil {
				if !errors.Is(err, stt.ErrSessionClosed) {
					slog.Warn("speech: send audio failed", "err", err)
				}
				return
			}
		}
	}
}

// read delivers transcripts in arrival order and reports the end of the
// stream exactly once.
func (s *session) read(handle stt.SessionHandle) {
	partials, finals := handle.Partials(), handle.Finals()
	seq := 0
	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			s.ev.OnFragment(dictation.Fragment{Text: t.Text, IsFinal: false, Seq: seq})
			seq++
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			s.ev.OnFragment(dictation.Fragment{Text: t.Text, IsFinal: true, Seq: seq})
			seq++
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.capture.Close()

	s.mu.Lock()
	stopped, lost := s.stopped, s.captureLost
	s.mu.Unlock()

	err := handle.Err()
	switch {
	case stopped:
		s.ev.OnError(dictation.KindAborted, context.Canceled)
	case lost:
		s.ev.OnError(dictation.KindPermissionDenied, ErrCaptureLost)
	case err != nil:
		s.ev.OnError(Classify(err), err)
	}
	s.ev.OnEnd()
}
