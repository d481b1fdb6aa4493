package metrics

import (
	"context"
	"net/http"
	"time"

	metrics "github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	logger "github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	mutationCounter *prometheus.CounterVec

	recalculationDuration *prometheus.HistogramVec
	dependencyChanges     prometheus.Counter

	propagationDuration *prometheus.HistogramVec
	requirementRows     prometheus.Counter

	batchItems *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		mutationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_mutation_total",
			Help: "Total number of sequencing use case invocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		recalculationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_dependency_recalculation_duration_seconds",
			Help:    "Duration of dependency recalculations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		dependencyChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_dependency_changes_total",
			Help: "Total operations whose dependency set was rewritten.",
		}),
		propagationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_requirement_propagation_duration_seconds",
			Help:    "Duration of requirement propagations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		requirementRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_requirement_rows_total",
			Help: "Total requirement rows written.",
		}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_batch_items_total",
			Help: "Total order batch items by kind and result.",
		}, []string{"kind", "result"}), // result: applied, failed
	}

	registry.MustRegister(r.mutationCounter)
	registry.MustRegister(r.recalculationDuration)
	registry.MustRegister(r.dependencyChanges)
	registry.MustRegister(r.propagationDuration)
	registry.MustRegister(r.requirementRows)
	registry.MustRegister(r.batchItems)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordMutation(ctx context.Context, kind string, outcome string) {
	r.mutationCounter.WithLabelValues(kind, outcome).Inc()
}

func (r *PrometheusRecorder) RecordRecalculation(ctx context.Context, duration time.Duration, changed int, outcome string) {
	r.recalculationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	r.dependencyChanges.Add(float64(changed))
	logger.Debugf("Metrics: dependency recalculation took %.3fs, %d changed (%s).", duration.Seconds(), changed, outcome)
}

func (r *PrometheusRecorder) RecordPropagation(ctx context.Context, duration time.Duration, operations int, outcome string) {
	r.propagationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	r.requirementRows.Add(float64(operations))
	logger.Debugf("Metrics: requirement propagation took %.3fs, %d rows (%s).", duration.Seconds(), operations, outcome)
}

func (r *PrometheusRecorder) RecordBatchItems(ctx context.Context, kind string, applied, failed int) {
	r.batchItems.WithLabelValues(kind, "applied").Add(float64(applied))
	r.batchItems.WithLabelValues(kind, "failed").Add(float64(failed))
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
