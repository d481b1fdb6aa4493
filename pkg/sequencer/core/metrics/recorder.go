// Package metrics defines the metric and tracing ports of the sequencing service.
// Backends (Prometheus, OpenTelemetry) live in the infrastructure layer.
package metrics

import (
	"context"
	"time"
)

// Outcome labels used by every recorder.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// OutcomeOf maps an error onto an outcome label.
func OutcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// MetricRecorder is an abstract interface for recording metrics of sequencing activity.
//
// This facilitates integration with different metrics backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordMutation records one use case invocation.
	//
	// ctx: The context for the operation.
	// kind: The mutation kind (e.g., "insert_operation", "reorder_operations").
	// outcome: One of OutcomeSuccess, OutcomeFailure, OutcomePartial.
	RecordMutation(ctx context.Context, kind string, outcome string)

	// RecordRecalculation records one dependency recalculation.
	//
	// ctx: The context for the operation.
	// duration: How long the recalculation took.
	// changed: The number of operations whose dependency set was rewritten.
	// outcome: One of OutcomeSuccess, OutcomeFailure.
	RecordRecalculation(ctx context.Context, duration time.Duration, changed int, outcome string)

	// RecordPropagation records one requirement propagation of a make method tree.
	//
	// ctx: The context for the operation.
	// duration: How long the propagation took.
	// operations: The number of requirement rows written.
	// outcome: One of OutcomeSuccess, OutcomeFailure.
	RecordPropagation(ctx context.Context, duration time.Duration, operations int, outcome string)

	// RecordBatchItems records the item outcomes of one order batch.
	//
	// ctx: The context for the operation.
	// kind: "operation" or "step".
	// applied: The number of items persisted.
	// failed: The number of items reported as failed.
	RecordBatchItems(ctx context.Context, kind string, applied, failed int)
}
