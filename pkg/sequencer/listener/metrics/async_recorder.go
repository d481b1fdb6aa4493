package metrics

import (
	"context"
	"sync"
	"time"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"go.uber.org/fx"
)

// MetricEvent represents a metric event to be recorded asynchronously.
type MetricEvent struct {
	Type     string
	Kind     string
	Outcome  string
	Duration time.Duration
	Count    int
	Failed   int
}

// Metric event type constants
const (
	MetricEventTypeMutation      = "mutation"
	MetricEventTypeRecalculation = "recalculation"
	MetricEventTypePropagation   = "propagation"
	MetricEventTypeBatchItems    = "batch_items"
)

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine, so request handlers never wait on
// a metrics backend.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// bufferSize: The buffer size for the event queue. If 0 or less, a default value is used.
// syncRec: The synchronous recorder that performs the actual metric recording.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.eventQueue:
			r.processEvent(event)
		case <-r.stopCh:
			// Drain what is queued before exiting.
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				r.processEvent(<-r.eventQueue)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

func (r *AsyncMetricRecorder) processEvent(event MetricEvent) {
	// The request context is gone by the time the event is processed.
	ctx := context.Background()
	switch event.Type {
	case MetricEventTypeMutation:
		r.syncRecorder.RecordMutation(ctx, event.Kind, event.Outcome)
	case MetricEventTypeRecalculation:
		r.syncRecorder.RecordRecalculation(ctx, event.Duration, event.Count, event.Outcome)
	case MetricEventTypePropagation:
		r.syncRecorder.RecordPropagation(ctx, event.Duration, event.Count, event.Outcome)
	case MetricEventTypeBatchItems:
		r.syncRecorder.RecordBatchItems(ctx, event.Kind, event.Count, event.Failed)
	default:
		logger.Warnf("AsyncMetricRecorder: Unknown metric event type: %s", event.Type)
	}
}

// Close stops the worker after it has processed every queued event. It is safe to call twice.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		logger.Debugf("AsyncMetricRecorder: Sending shutdown signal...")
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s, kind: %s). Event discarded.", event.Type, event.Kind)
	}
}

func (r *AsyncMetricRecorder) RecordMutation(ctx context.Context, kind string, outcome string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeMutation, Kind: kind, Outcome: outcome})
}

func (r *AsyncMetricRecorder) RecordRecalculation(ctx context.Context, duration time.Duration, changed int, outcome string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeRecalculation, Duration: duration, Count: changed, Outcome: outcome})
}

func (r *AsyncMetricRecorder) RecordPropagation(ctx context.Context, duration time.Duration, operations int, outcome string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypePropagation, Duration: duration, Count: operations, Outcome: outcome})
}

func (r *AsyncMetricRecorder) RecordBatchItems(ctx context.Context, kind string, applied, failed int) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeBatchItems, Kind: kind, Count: applied, Failed: failed})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

// NewAsyncMetricRecorderWrapper is a helper function for use with fx.Decorate.
// It wraps the configured recorder and closes the wrapper on shutdown.
func NewAsyncMetricRecorderWrapper(lc fx.Lifecycle, cfg *config.Config, syncRecorder metrics.MetricRecorder) metrics.MetricRecorder {
	asyncRecorder := NewAsyncMetricRecorder(cfg.Sequencer.Telemetry.MetricsAsyncBufferSize, syncRecorder)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			asyncRecorder.Close()
			return nil
		},
	})
	logger.Debugf("MetricRecorder decorated with asynchronous wrapper.")
	return asyncRecorder
}
