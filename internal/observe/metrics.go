// Package observe provides the observability primitives of the dictanote
// service: OpenTelemetry metrics, tracing, trace-aware logging and the HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping through the Prometheus exporter installed by [InitProvider]. Tests
// should use [NewMetrics] with their own [metric.MeterProvider] rather than
// [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/dictanote"

// Metrics holds all OpenTelemetry instruments of the service.
type Metrics struct {
	// STTDuration tracks how long opening a recognition stream takes.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks assistant completion latency.
	LLMDuration metric.Float64Histogram

	// HTTPRequestDuration tracks request handling time by method and route.
	HTTPRequestDuration metric.Float64Histogram

	// Commits counts text insertions by mode.
	Commits metric.Int64Counter

	// Restarts counts scheduled recognizer restarts by mode.
	Restarts metric.Int64Counter

	// SessionErrors counts recognizer session errors by kind.
	SessionErrors metric.Int64Counter

	// ProviderRequests counts provider calls by provider, kind and status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// ActiveDictations tracks the number of open dictation pipelines.
	ActiveDictations metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds, spanning quick stream
// setup through slow model completions.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("dictanote.stt.duration",
		metric.WithDescription("Latency of opening a speech recognition stream."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("dictanote.llm.duration",
		metric.WithDescription("Latency of assistant completions."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("dictanote.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.Commits, err = m.Int64Counter("dictanote.dictation.commits",
		metric.WithDescription("Dictated text insertions by mode."),
	); err != nil {
		return nil, err
	}
	if met.Restarts, err = m.Int64Counter("dictanote.dictation.restarts",
		metric.WithDescription("Scheduled recognizer restarts by mode."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("dictanote.dictation.session_errors",
		metric.WithDescription("Recognizer session errors by kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("dictanote.provider.requests",
		metric.WithDescription("Provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("dictanote.provider.errors",
		metric.WithDescription("Provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveDictations, err = m.Int64UpDownCounter("dictanote.dictation.active",
		metric.WithDescription("Number of open dictation pipelines."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Call it after [InitProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordLLM records an assistant completion and its outcome.
func (m *Metrics) RecordLLM(ctx context.Context, provider, action string, d time.Duration, err error) {
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("action", action)))
	m.RecordProviderRequest(ctx, provider, "llm", status(err))
	if err != nil {
		m.RecordProviderError(ctx, provider, "llm")
	}
}

// RecordSTTStart records opening a recognition stream and its outcome.
func (m *Metrics) RecordSTTStart(ctx context.Context, provider string, d time.Duration, err error) {
	m.STTDuration.Record(ctx, d.Seconds())
	m.RecordProviderRequest(ctx, provider, "stt", status(err))
	if err != nil {
		m.RecordProviderError(ctx, provider, "stt")
	}
}

// RecordCommit counts one dictated insertion.
func (m *Metrics) RecordCommit(ctx context.Context, mode string) {
	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordRestart counts one scheduled recognizer restart.
func (m *Metrics) RecordRestart(ctx context.Context, mode string) {
	m.Restarts.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordSessionError counts one recognizer session error.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
