// Package listener defines the hooks the sequencing use cases notify after each
// mutation, recalculation and propagation.
package listener

import (
	"context"
	"time"
)

// MutationEvent describes one completed use case invocation.
type MutationEvent struct {
	Kind        string
	CompanyID   string
	UserID      string
	JobID       string
	OperationID string
	// Applied and Failed count the items of an order batch. Both are zero otherwise.
	Applied  int
	Failed   int
	Duration time.Duration
	Err      error
}

// RecalculationEvent describes one dependency recalculation.
type RecalculationEvent struct {
	JobID      string
	Operations int
	Changed    int
	Dropped    int
	Duration   time.Duration
	Err        error
}

// PropagationEvent describes one requirement propagation.
type PropagationEvent struct {
	JobID      string
	Methods    []string
	Operations int
	Duration   time.Duration
	Err        error
}

// FailureEvent is emitted when a mutation persisted but a follow-up recomputation
// failed, leaving derived state stale until the job is recalculated.
type FailureEvent struct {
	Kind  string
	JobID string
	Stage string
	Err   error
}

// SequencingListener receives sequencing events. Implementations must not block.
type SequencingListener interface {
	OnMutation(ctx context.Context, event MutationEvent)
	OnRecalculated(ctx context.Context, event RecalculationEvent)
	OnPropagated(ctx context.Context, event PropagationEvent)
	OnFailure(ctx context.Context, event FailureEvent)
}

// Composite fans every event out to its members in order.
type Composite []SequencingListener

// NewComposite creates a Composite, skipping nil members.
func NewComposite(listeners ...SequencingListener) Composite {
	c := make(Composite, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			c = append(c, l)
		}
	}
	return c
}

func (c Composite) OnMutation(ctx context.Context, event MutationEvent) {
	for _, l := range c {
		l.OnMutation(ctx, event)
	}
}

func (c Composite) OnRecalculated(ctx context.Context, event RecalculationEvent) {
	for _, l := range c {
		l.OnRecalculated(ctx, event)
	}
}

func (c Composite) OnPropagated(ctx context.Context, event PropagationEvent) {
	for _, l := range c {
		l.OnPropagated(ctx, event)
	}
}

func (c Composite) OnFailure(ctx context.Context, event FailureEvent) {
	for _, l := range c {
		l.OnFailure(ctx, event)
	}
}

var _ SequencingListener = Composite(nil)
