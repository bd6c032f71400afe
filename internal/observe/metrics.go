// Package observe provides the observability primitives of buildcatalog:
// OpenTelemetry metrics, tracing and trace-aware structured logging.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is set up by [InitProvider]; because the tool runs once and
// exits, the collected metrics are written to a node_exporter textfile with
// [WriteTextfile] rather than served over HTTP. A package-level default
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

// meterName is the instrumentation scope name used for all buildcatalog metrics.
const meterName = "github.com/MrWong99/buildcatalog"

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// MergeRuns counts merge runs. Use with attribute:
	//   attribute.String("status", ...)
	MergeRuns metric.Int64Counter

	// BuildingsAdded counts definitions appended by successful runs.
	BuildingsAdded metric.Int64Counter

	// DanglingRequirements counts prerequisite references to unknown ids
	// found after a merge.
	DanglingRequirements metric.Int64Counter

	// CatalogSize is the record count of the last merged catalog.
	CatalogSize metric.Int64Gauge

	// MergeDuration tracks the wall time of a whole run.
	MergeDuration metric.Float64Histogram

	// StoreDuration tracks store latency. Use with attributes:
	//   attribute.String("op", ...), attribute.String("backend", ...), attribute.String("status", ...)
	StoreDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for local
// file and database round trips.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.MergeRuns, err = m.Int64Counter("buildcatalog.merge.runs",
		metric.WithDescription("Total merge runs by status."),
	); err != nil {
		return nil, err
	}
	if met.BuildingsAdded, err = m.Int64Counter("buildcatalog.buildings.added",
		metric.WithDescription("Total building definitions appended to catalogs."),
	); err != nil {
		return nil, err
	}
	if met.DanglingRequirements, err = m.Int64Counter("buildcatalog.requirements.dangling",
		metric.WithDescription("Prerequisite references to building ids missing from the catalog."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.CatalogSize, err = m.Int64Gauge("buildcatalog.catalog.size",
		metric.WithDescription("Number of building definitions in the last merged catalog."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.MergeDuration, err = m.Float64Histogram("buildcatalog.merge.duration",
		metric.WithDescription("Wall time of a load, merge and save run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StoreDuration, err = m.Float64Histogram("buildcatalog.store.duration",
		metric.WithDescription("Latency of catalog store operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
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

// Status maps an error to the status attribute value.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordRun records the outcome of one merge run.
func (m *Metrics) RecordRun(ctx context.Context, seconds float64, err error) {
	status := metric.WithAttributes(attribute.String("status", Status(err)))
	m.MergeRuns.Add(ctx, 1, status)
	m.MergeDuration.Record(ctx, seconds, status)
}

// RecordStoreOp records the latency of one store operation.
func (m *Metrics) RecordStoreOp(ctx context.Context, op, backend string, seconds float64, err error) {
	m.StoreDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("backend", backend),
			attribute.String("status", Status(err)),
		),
	)
}
