package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrWong99/dictanote/pkg/provider/stt"
	sttmock "github.com/MrWong99/dictanote/pkg/provider/stt/mock"
)

func TestSTTFallback_StartStream(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartStreamErr: fmt.Errorf("deepgram: dial: %w", stt.ErrNetwork)}
	secondary := &sttmock.Provider{}
	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})
	fb.AddFallback("backup", secondary)

	cfg := stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en-US"}
	handle, err := fb.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer handle.Close()

	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Fatalf("calls primary=%d secondary=%d, want 1/1", primary.CallCount(), secondary.CallCount())
	}
	if got := secondary.StartStreamCalls[0].Cfg; got != cfg {
		t.Errorf("secondary cfg = %+v, want %+v", got, cfg)
	}
}

func TestSTTFallback_AllFailKeepsCause(t *testing.T) {
	t.Parallel()

	primary := &sttmock.Provider{StartStreamErr: errors.New("deepgram down")}
	secondary := &sttmock.Provider{StartStreamErr: fmt.Errorf("backup: %w", stt.ErrUnauthorized)}
	fb := NewSTTFallback(primary, "deepgram", FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3}})
	fb.AddFallback("backup", secondary)

	_, err := fb.StartStream(context.Background(), stt.StreamConfig{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, stt.ErrUnauthorized) {
		t.Fatalf("err = %v, want it to keep stt.ErrUnauthorized for classification", err)
	}
	if st := fb.Status(); len(st) != 2 {
		t.Fatalf("Status() = %+v", st)
	}
}
