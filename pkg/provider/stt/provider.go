// Package stt defines the Provider interface for streaming Speech-to-Text
// backends.
//
// A provider wraps a real-time transcription service and exposes a uniform
// streaming interface. Once opened, a SessionHandle accepts raw PCM audio and
// emits two streams of Transcript values: low-latency partials for live
// previews and authoritative finals that end up in a note.
//
// When a session ends, both channels are closed and Err reports why. Errors
// that callers need to tell apart are wrapped around the sentinels in this
// package so that errors.Is works across providers.
package stt

import (
	"context"
	"errors"
)

// Sentinel errors shared by all providers.
var (
	// ErrUnauthorized means the backend rejected the credentials or refused
	// access to the recognition service.
	ErrUnauthorized = errors.New("stt: unauthorized")

	// ErrNetwork means the backend could not be reached or the transport
	// failed mid-stream.
	ErrNetwork = errors.New("stt: network failure")

	// ErrNoSpeech means the backend ended the session because it received no
	// usable audio within its timeout.
	ErrNoSpeech = errors.New("stt: no speech received")

	// ErrSessionClosed is returned by SendAudio after Close.
	ErrSessionClosed = errors.New("stt: session is closed")
)

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is the usual value for
	// browser capture downsampled for recognition.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider pick its default.
	Language string
}

// SessionHandle represents an open streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian PCM audio.
	// Returns ErrSessionClosed (possibly wrapped) after the session ended.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits authoritative transcripts. Closed when the session ends.
	Finals() <-chan Transcript

	// Err returns the reason the session ended. It is nil while the session
	// is live and after a clean Close. Only meaningful once both transcript
	// channels are closed.
	Err() error

	// Close terminates the session, flushes pending audio and releases all
	// resources. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately.
	//
	// Returns an error wrapping ErrUnauthorized or ErrNetwork when the
	// session cannot be established for those reasons.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
