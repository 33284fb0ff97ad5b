package stt

import "time"

// Transcript is a speech-to-text result. Both partial and final transcripts
// use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal reports whether the provider has committed to this result.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report it.
	Confidence float64

	// Words contains per-word detail when available.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}
