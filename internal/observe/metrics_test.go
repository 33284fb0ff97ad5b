package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum data point carrying key=value.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

func histCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is not a histogram", name)
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"dictanote.stt.duration", m.STTDuration},
		{"dictanote.llm.duration", m.LLMDuration},
		{"dictanote.http.request.duration", m.HTTPRequestDuration},
	}
	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)
	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			if got := histCount(t, rm, tc.name); got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordLLM(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLLM(ctx, "gemini", "summarize", 800*time.Millisecond, nil)
	m.RecordLLM(ctx, "gemini", "beautify", 2*time.Second, nil)
	m.RecordLLM(ctx, "gemini", "beautify", time.Second, errors.New("quota"))

	rm := collect(t, reader)
	if got := histCount(t, rm, "dictanote.llm.duration"); got != 3 {
		t.Errorf("llm samples = %d, want 3", got)
	}
	if got := sumFor(t, rm, "dictanote.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "dictanote.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
	if got := sumFor(t, rm, "dictanote.provider.errors", "kind", "llm"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestRecordSTTStart(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSTTStart(ctx, "deepgram", 40*time.Millisecond, nil)
	m.RecordSTTStart(ctx, "deepgram", 40*time.Millisecond, errors.New("dial"))

	rm := collect(t, reader)
	if got := histCount(t, rm, "dictanote.stt.duration"); got != 2 {
		t.Errorf("stt samples = %d, want 2", got)
	}
	if got := sumFor(t, rm, "dictanote.provider.errors", "provider", "deepgram"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestDictationCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommit(ctx, "accumulated")
	m.RecordCommit(ctx, "accumulated")
	m.RecordCommit(ctx, "continuous")
	m.RecordRestart(ctx, "continuous")
	m.RecordSessionError(ctx, "no-speech")
	m.RecordSessionError(ctx, "no-speech")
	m.ActiveDictations.Add(ctx, 1)
	m.ActiveDictations.Add(ctx, 1)
	m.ActiveDictations.Add(ctx, -1)

	rm := collect(t, reader)
	tests := []struct {
		name, key, value string
		want             int64
	}{
		{"dictanote.dictation.commits", "mode", "accumulated", 2},
		{"dictanote.dictation.commits", "mode", "continuous", 1},
		{"dictanote.dictation.restarts", "mode", "continuous", 1},
		{"dictanote.dictation.session_errors", "kind", "no-speech", 2},
	}
	for _, tt := range tests {
		if got := sumFor(t, rm, tt.name, tt.key, tt.value); got != tt.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tt.name, tt.key, tt.value, got, tt.want)
		}
	}

	met := findMetric(rm, "dictanote.dictation.active")
	if met == nil {
		t.Fatal("active gauge not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
		t.Errorf("active dictations = %+v, want 1", sum.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different pointers")
	}
}
