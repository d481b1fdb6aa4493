package metrics

import (
	"context"
	"fmt"
	"time"

	metrics "github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OpenTelemetryRecorder records sequencing metrics through an OpenTelemetry meter.
type OpenTelemetryRecorder struct {
	mutations             metric.Int64Counter
	recalculationDuration metric.Float64Histogram
	dependencyChanges     metric.Int64Counter
	propagationDuration   metric.Float64Histogram
	requirementRows       metric.Int64Counter
	batchItems            metric.Int64Counter
}

// NewOpenTelemetryRecorder creates the instruments on meter.
func NewOpenTelemetryRecorder(meter metric.Meter) (*OpenTelemetryRecorder, error) {
	r := &OpenTelemetryRecorder{}
	var err error
	if r.mutations, err = meter.Int64Counter("sequencer.mutations",
		metric.WithDescription("Sequencing use case invocations by kind and outcome.")); err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}
	if r.recalculationDuration, err = meter.Float64Histogram("sequencer.dependency.recalculation.duration",
		metric.WithDescription("Duration of dependency recalculations."), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create recalculation histogram: %w", err)
	}
	if r.dependencyChanges, err = meter.Int64Counter("sequencer.dependency.changes",
		metric.WithDescription("Operations whose dependency set was rewritten.")); err != nil {
		return nil, fmt.Errorf("failed to create dependency change counter: %w", err)
	}
	if r.propagationDuration, err = meter.Float64Histogram("sequencer.requirement.propagation.duration",
		metric.WithDescription("Duration of requirement propagations."), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create propagation histogram: %w", err)
	}
	if r.requirementRows, err = meter.Int64Counter("sequencer.requirement.rows",
		metric.WithDescription("Requirement rows written.")); err != nil {
		return nil, fmt.Errorf("failed to create requirement row counter: %w", err)
	}
	if r.batchItems, err = meter.Int64Counter("sequencer.batch.items",
		metric.WithDescription("Order batch items by kind and result.")); err != nil {
		return nil, fmt.Errorf("failed to create batch item counter: %w", err)
	}
	return r, nil
}

func (r *OpenTelemetryRecorder) RecordMutation(ctx context.Context, kind string, outcome string) {
	r.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome)))
}

func (r *OpenTelemetryRecorder) RecordRecalculation(ctx context.Context, duration time.Duration, changed int, outcome string) {
	r.recalculationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	r.dependencyChanges.Add(ctx, int64(changed))
}

func (r *OpenTelemetryRecorder) RecordPropagation(ctx context.Context, duration time.Duration, operations int, outcome string) {
	r.propagationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	r.requirementRows.Add(ctx, int64(operations))
}

func (r *OpenTelemetryRecorder) RecordBatchItems(ctx context.Context, kind string, applied, failed int) {
	r.batchItems.Add(ctx, int64(applied), metric.WithAttributes(attribute.String("kind", kind), attribute.String("result", "applied")))
	r.batchItems.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("kind", kind), attribute.String("result", "failed")))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
