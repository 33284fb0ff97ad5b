package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/dictanote"

// Tracer returns the service tracer from the global [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the span in ctx, or "" when there is
// none. It doubles as the request correlation identifier.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

type noteIDKey struct{}

// WithNoteID returns a context whose [Logger] tags every line with note_id.
func WithNoteID(ctx context.Context, noteID string) context.Context {
	return context.WithValue(ctx, noteIDKey{}, noteID)
}

// NoteID returns the note ID stored by [WithNoteID].
func NoteID(ctx context.Context) string {
	id, _ := ctx.Value(noteIDKey{}).(string)
	return id
}

// Logger returns the default [slog.Logger] enriched with trace_id and
// span_id from the span in ctx and with the note_id set by [WithNoteID].
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := NoteID(ctx); id != "" {
		l = l.With(slog.String("note_id", id))
	}
	return l
}
