// Package observe provides application-wide observability primitives for
// voxdial, built on OpenTelemetry metrics.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxdial metrics.
const meterName = "github.com/voxdial/voxdial"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ResolveDuration tracks end-to-end resolution latency.
	ResolveDuration metric.Float64Histogram

	// Resolutions counts resolution attempts. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Resolutions metric.Int64Counter

	// Denials counts gate and scorer denials. Use with attribute:
	//   attribute.String("reason", ...)
	Denials metric.Int64Counter

	// Transitions counts lifecycle transitions. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("to", ...)
	Transitions metric.Int64Counter

	// EnrollmentSamples counts accepted voice enrollment samples.
	EnrollmentSamples metric.Int64Counter

	// ActiveRecords tracks the number of non-terminal action records.
	ActiveRecords metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for in-process resolution plus storage round-trips.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ResolveDuration, err = m.Float64Histogram("voxdial.resolve.duration",
		metric.WithDescription("End-to-end latency of voice command resolution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Resolutions, err = m.Int64Counter("voxdial.resolutions",
		metric.WithDescription("Total resolution attempts by action kind and status."),
	); err != nil {
		return nil, err
	}
	if met.Denials, err = m.Int64Counter("voxdial.denials",
		metric.WithDescription("Total gate and scorer denials by reason."),
	); err != nil {
		return nil, err
	}
	if met.Transitions, err = m.Int64Counter("voxdial.lifecycle.transitions",
		metric.WithDescription("Total lifecycle transitions by action kind and target state."),
	); err != nil {
		return nil, err
	}
	if met.EnrollmentSamples, err = m.Int64Counter("voxdial.enrollment.samples",
		metric.WithDescription("Total accepted voice enrollment samples."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRecords, err = m.Int64UpDownCounter("voxdial.active_records",
		metric.WithDescription("Number of action records not yet in a terminal state."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// RecordResolution records a resolution attempt with the standard attribute
// set. status is "ok" or "denied".
func (m *Metrics) RecordResolution(ctx context.Context, kind, status string) {
	m.Resolutions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordDenial records a denial counter increment by reason.
func (m *Metrics) RecordDenial(ctx context.Context, reason string) {
	m.Denials.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordEnrollmentSample records one accepted voice enrollment sample,
// attributed with the profile's enrollment state after the submission.
func (m *Metrics) RecordEnrollmentSample(ctx context.Context, state string) {
	m.EnrollmentSamples.Add(ctx, 1,
		metric.WithAttributes(attribute.String("state", state)),
	)
}

// RecordTransition records a lifecycle transition counter increment.
func (m *Metrics) RecordTransition(ctx context.Context, kind, to string) {
	m.Transitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("to", to),
		),
	)
}
