package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs swaps the default logger for one writing to the returned buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	tp, _ := newTestTracerProvider(t)
	ids := make(map[string]struct{}, 50)
	for range 50 {
		ctx, span := tp.Tracer("test").Start(context.Background(), "unique")
		cid := CorrelationID(ctx)
		span.End()
		if len(cid) != 32 {
			t.Fatalf("correlation ID length = %d, want 32", len(cid))
		}
		if _, dup := ids[cid]; dup {
			t.Fatalf("duplicate correlation ID: %s", cid)
		}
		ids[cid] = struct{}{}
	}
}

func TestStartSpan_CreatesSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "assist.summarize")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan did not create a span with a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "assist.summarize" {
		t.Fatalf("spans = %v", spans)
	}
}

func TestLogger(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	tests := []struct {
		name    string
		ctx     func() (context.Context, func())
		want    []string
		notWant []string
	}{
		{
			name:    "no span",
			ctx:     func() (context.Context, func()) { return context.Background(), func() {} },
			notWant: []string{"trace_id", "note_id"},
		},
		{
			name: "span",
			ctx: func() (context.Context, func()) {
				ctx, span := tp.Tracer("test").Start(context.Background(), "log")
				return ctx, func() { span.End() }
			},
			want:    []string{"trace_id=", "span_id="},
			notWant: []string{"note_id"},
		},
		{
			name: "note",
			ctx: func() (context.Context, func()) {
				return WithNoteID(context.Background(), "note-7"), func() {}
			},
			want:    []string{"note_id=note-7"},
			notWant: []string{"trace_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx, done := tt.ctx()
			defer done()

			Logger(ctx).Info("dictation started")
			logged := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(logged, w) {
					t.Errorf("log output missing %q: %s", w, logged)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(logged, w) {
					t.Errorf("log output should not contain %q: %s", w, logged)
				}
			}
		})
	}
}

func TestNoteID(t *testing.T) {
	if got := NoteID(context.Background()); got != "" {
		t.Errorf("NoteID(background) = %q", got)
	}
	if got := NoteID(WithNoteID(context.Background(), "abc")); got != "abc" {
		t.Errorf("NoteID = %q, want abc", got)
	}
}
