package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordMutation(ctx context.Context, kind string, outcome string) {}
func (r *NoOpMetricRecorder) RecordRecalculation(ctx context.Context, duration time.Duration, changed int, outcome string) {
}
func (r *NoOpMetricRecorder) RecordPropagation(ctx context.Context, duration time.Duration, operations int, outcome string) {
}
func (r *NoOpMetricRecorder) RecordBatchItems(ctx context.Context, kind string, applied, failed int) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartSpan returns ctx unchanged.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]string) {}

var _ Tracer = (*NoOpTracer)(nil)
