package metrics

import (
	"context"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/listener"
)

type MetricsListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsListener(recorder metrics.MetricRecorder) listener.SequencingListener {
	return &MetricsListener{recorder: recorder}
}

func (l *MetricsListener) OnMutation(ctx context.Context, e listener.MutationEvent) {
	outcome := metrics.OutcomeOf(e.Err)
	if e.Err == nil && e.Failed > 0 {
		outcome = metrics.OutcomePartial
	}
	l.recorder.RecordMutation(ctx, e.Kind, outcome)
	if e.Applied+e.Failed > 0 {
		l.recorder.RecordBatchItems(ctx, e.Kind, e.Applied, e.Failed)
	}
}

func (l *MetricsListener) OnRecalculated(ctx context.Context, e listener.RecalculationEvent) {
	l.recorder.RecordRecalculation(ctx, e.Duration, e.Changed, metrics.OutcomeOf(e.Err))
}

func (l *MetricsListener) OnPropagated(ctx context.Context, e listener.PropagationEvent) {
	l.recorder.RecordPropagation(ctx, e.Duration, e.Operations, metrics.OutcomeOf(e.Err))
}

func (l *MetricsListener) OnFailure(ctx context.Context, e listener.FailureEvent) {
	// Failures are already counted by OnRecalculated and OnPropagated.
}

var _ listener.SequencingListener = (*MetricsListener)(nil)
