package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline metrics. A nil *Collector is valid and
// records nothing, so callers and tests need not wire one.
type Collector struct {
	registry *prometheus.Registry

	StationRequestsTotal   *prometheus.CounterVec
	StationRequestDuration prometheus.Histogram
	TableRowsTotal         *prometheus.CounterVec
	PipelineErrorsTotal    *prometheus.CounterVec
	CheckpointOpsTotal     *prometheus.CounterVec
	CheckpointBytes        *prometheus.HistogramVec
	ScheduledRunsTotal     *prometheus.CounterVec
}

// NewCollector creates a collector on its own registry.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		StationRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "station_requests_total",
				Help:      "Station-data requests to the weather service by outcome",
			},
			[]string{"status"},
		),

		StationRequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "station_request_duration_seconds",
				Help:      "Duration of station-data requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		TableRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_rows_total",
				Help:      "Rows produced by the normalization pipeline by table kind",
			},
			[]string{"table"},
		),

		PipelineErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_errors_total",
				Help:      "Pipeline failures by stage and error kind",
			},
			[]string{"stage", "kind"},
		),

		CheckpointOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_operations_total",
				Help:      "Blob-store checkpoint operations by operation and outcome",
			},
			[]string{"op", "status"},
		),

		CheckpointBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checkpoint_bytes",
				Help:      "Size of checkpoint payloads in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"op"},
		),

		ScheduledRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scheduled_runs_total",
				Help:      "Scheduled checkpoint runs by outcome",
			},
			[]string{"status"},
		),
	}
}

// Handler exposes the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveStationRequest records one weather-service round trip.
func (c *Collector) ObserveStationRequest(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.StationRequestsTotal.WithLabelValues(status).Inc()
	c.StationRequestDuration.Observe(d.Seconds())
}

// RecordRows adds n rows produced for the given table kind.
func (c *Collector) RecordRows(table string, n int) {
	if c == nil {
		return
	}
	c.TableRowsTotal.WithLabelValues(table).Add(float64(n))
}

// RecordPipelineError counts a failure in stage, classified by kind.
func (c *Collector) RecordPipelineError(stage, kind string) {
	if c == nil {
		return
	}
	c.PipelineErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// RecordCheckpoint counts a blob-store operation and its payload size.
func (c *Collector) RecordCheckpoint(op string, err error, size int) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.CheckpointOpsTotal.WithLabelValues(op, status).Inc()
	if err == nil {
		c.CheckpointBytes.WithLabelValues(op).Observe(float64(size))
	}
}

// RecordScheduledRun counts a scheduler run.
func (c *Collector) RecordScheduledRun(err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.ScheduledRunsTotal.WithLabelValues(status).Inc()
}

// Timer measures an operation from its creation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
