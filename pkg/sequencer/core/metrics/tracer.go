package metrics

import "context"

// Tracer is an abstract interface for distributed tracing.
type Tracer interface {
	// StartSpan starts a span named name as a child of the span in ctx.
	//
	// Returns: A context with the new span set, and a function ending the span.
	//          A non-nil error passed to the function is recorded on the span.
	StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func(err error))

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]string)
}
