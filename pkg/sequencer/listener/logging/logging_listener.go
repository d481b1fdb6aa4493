package logging

import (
	"context"

	"github.com/tigerroll/sequencer/pkg/sequencer/listener"
	logger "github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

type LoggingListener struct{}

func NewLoggingListener() listener.SequencingListener {
	return &LoggingListener{}
}

func (l *LoggingListener) OnMutation(ctx context.Context, e listener.MutationEvent) {
	if e.Err != nil {
		logger.Warnf("SequencingListener: %s failed - Company: %s, Job: %s, Operation: %s, User: %s, Error: %v",
			e.Kind, e.CompanyID, e.JobID, e.OperationID, e.UserID, e.Err)
		return
	}
	if e.Applied+e.Failed > 0 {
		logger.Infof("SequencingListener: %s - Job: %s, Operation: %s, Applied: %d, Failed: %d, Took: %s",
			e.Kind, e.JobID, e.OperationID, e.Applied, e.Failed, e.Duration)
		return
	}
	logger.Infof("SequencingListener: %s - Job: %s, Operation: %s, Took: %s", e.Kind, e.JobID, e.OperationID, e.Duration)
}

func (l *LoggingListener) OnRecalculated(ctx context.Context, e listener.RecalculationEvent) {
	if e.Err != nil {
		logger.Errorf("SequencingListener: Recalculation failed - Job: %s, Error: %v", e.JobID, e.Err)
		return
	}
	logger.Debugf("SequencingListener: Recalculated - Job: %s, Operations: %d, Changed: %d, Dropped: %d, Took: %s",
		e.JobID, e.Operations, e.Changed, e.Dropped, e.Duration)
}

func (l *LoggingListener) OnPropagated(ctx context.Context, e listener.PropagationEvent) {
	if e.Err != nil {
		logger.Errorf("SequencingListener: Propagation failed - Job: %s, Error: %v", e.JobID, e.Err)
		return
	}
	logger.Debugf("SequencingListener: Propagated - Job: %s, Methods: %v, Operations: %d, Took: %s",
		e.JobID, e.Methods, e.Operations, e.Duration)
}

func (l *LoggingListener) OnFailure(ctx context.Context, e listener.FailureEvent) {
	logger.Errorf("SequencingListener: %s left job %s stale at %s, recalculate the job to repair it: %v",
		e.Kind, e.JobID, e.Stage, e.Err)
}

var _ listener.SequencingListener = (*LoggingListener)(nil)
