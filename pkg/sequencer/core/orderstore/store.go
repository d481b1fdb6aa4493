// Package orderstore persists the linear sort order of operations within a job and
// of steps within an operation.
//
// A batch is applied item by item. Malformed items are reported individually and
// never fail the batch; writes that succeeded are never rolled back.
package orderstore

import (
	"context"
	"fmt"
	"math"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/ordering"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/hashicorp/go-multierror"
)

const moduleName = "orderstore"

// BatchResult is the outcome of one order batch.
type BatchResult struct {
	// Items holds one result per input tuple, in input order.
	Items []model.ItemResult
	// Renumbered holds results for members that were not part of the request but
	// moved because of it.
	Renumbered []model.ItemResult
}

// Err returns the aggregate of every item and renumbering failure, or nil.
func (r BatchResult) Err() error {
	var result *multierror.Error
	for _, item := range r.Items {
		if item.Err != nil {
			result = multierror.Append(result, item.Err)
		}
	}
	for _, item := range r.Renumbered {
		if item.Err != nil {
			result = multierror.Append(result, item.Err)
		}
	}
	return result.ErrorOrNil()
}

// AppliedCount returns the number of requested items that were applied.
func (r BatchResult) AppliedCount() int {
	n := 0
	for _, item := range r.Items {
		if item.Applied() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of requested items that were not applied.
func (r BatchResult) FailedCount() int {
	return len(r.Items) - r.AppliedCount()
}

// Store applies order batches through the operation and step repositories.
type Store struct {
	operations repository.Operation
	steps      repository.Step
	now        func() time.Time
}

// NewStore creates a new Store.
func NewStore(operations repository.Operation, steps repository.Step) *Store {
	return &Store{operations: operations, steps: steps, now: time.Now}
}

// WithClock replaces the time source used for update stamps. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// request is a validated tuple.
type request struct {
	index     int
	id        string
	position  float64
	updatedBy string
}

// member is a persisted row of the scope being reordered.
type member struct {
	id        string
	sortOrder int
}

// writer persists the position of one member.
type writer func(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error

// ApplyOperationOrder applies requested positions to operations of jobID.
func (s *Store) ApplyOperationOrder(ctx context.Context, companyID, jobID string, updates []model.OperationOrderUpdate) (BatchResult, error) {
	if jobID == "" {
		return BatchResult{}, exception.NewValidationError(moduleName, "job id is required", nil)
	}
	ops, err := s.operations.ListOperationsByJob(ctx, companyID, jobID)
	if err != nil {
		return BatchResult{}, exception.NewSequencerErrorf(moduleName, exception.KindInternal, "failed to load operations of job %s: %w", jobID, err)
	}
	members := make([]member, len(ops))
	for i, op := range ops {
		members[i] = member{id: op.ID, sortOrder: op.SortOrder}
	}
	tuples := make([]request, len(updates))
	for i, u := range updates {
		tuples[i] = request{index: i, id: u.ID, position: u.Order, updatedBy: u.UpdatedBy}
	}
	return s.apply(ctx, "operation", members, tuples, s.operations.UpdateOperationSortOrder)
}

// ApplyStepOrder applies requested positions to steps of operationID.
func (s *Store) ApplyStepOrder(ctx context.Context, operationID string, updates []model.StepOrderUpdate) (BatchResult, error) {
	if operationID == "" {
		return BatchResult{}, exception.NewValidationError(moduleName, "operation id is required", nil)
	}
	steps, err := s.steps.ListStepsByOperation(ctx, operationID)
	if err != nil {
		return BatchResult{}, exception.NewSequencerErrorf(moduleName, exception.KindInternal, "failed to load steps of operation %s: %w", operationID, err)
	}
	members := make([]member, len(steps))
	for i, st := range steps {
		members[i] = member{id: st.ID, sortOrder: st.SortOrder}
	}
	tuples := make([]request, len(updates))
	for i, u := range updates {
		tuples[i] = request{index: i, id: u.ID, position: u.SortOrder, updatedBy: u.UpdatedBy}
	}
	return s.apply(ctx, "step", members, tuples, s.steps.UpdateStepSortOrder)
}

func (s *Store) apply(ctx context.Context, kind string, members []member, tuples []request, write writer) (BatchResult, error) {
	result := BatchResult{Items: make([]model.ItemResult, len(tuples))}

	entries := make([]ordering.Entry, len(members))
	stored := make(map[string]int, len(members))
	for i, m := range members {
		entries[i] = ordering.Entry{ID: m.id, Position: float64(m.sortOrder)}
		stored[m.id] = m.sortOrder
	}
	list, err := ordering.FromEntries(entries)
	if err != nil {
		return result, exception.NewSequencerErrorf(moduleName, exception.KindInternal, "stored %s order is corrupt: %w", kind, err)
	}

	requested := make(map[string]float64, len(tuples))
	valid := make([]request, 0, len(tuples))
	seen := make(map[string]int, len(tuples))
	for _, t := range tuples {
		result.Items[t.index].ID = t.id
		if err := validateTuple(kind, t, list, seen); err != nil {
			result.Items[t.index].Err = err
			continue
		}
		seen[t.id] = t.index
		requested[t.id] = t.position
		valid = append(valid, t)
	}

	if len(valid) == 0 {
		return result, nil
	}
	if err := list.Reorder(requested); err != nil {
		return result, exception.NewSequencerErrorf(moduleName, exception.KindInternal, "failed to reorder %ss: %w", kind, err)
	}
	assigned := list.Assignments()

	at := s.now()
	for _, t := range valid {
		pos := assigned[t.id]
		if pos != stored[t.id] {
			if err := write(ctx, t.id, pos, t.updatedBy, at); err != nil {
				logger.Warnf("Failed to write order of %s %s: %v", kind, t.id, err)
				result.Items[t.index].Err = exception.NewSequencerErrorf(moduleName, exception.KindInternal, "%s %s: failed to write order: %w", kind, t.id, err)
				continue
			}
		}
		result.Items[t.index].Order = pos
	}

	// Members pushed aside by the request are written with the first requester's stamp.
	updatedBy := valid[0].updatedBy
	for _, id := range list.IDs() {
		if _, ok := requested[id]; ok {
			continue
		}
		pos := assigned[id]
		if pos == stored[id] {
			continue
		}
		item := model.ItemResult{ID: id, Order: pos}
		if err := write(ctx, id, pos, updatedBy, at); err != nil {
			logger.Warnf("Failed to renumber %s %s: %v", kind, id, err)
			item.Order = 0
			item.Err = exception.NewSequencerErrorf(moduleName, exception.KindInternal, "%s %s: failed to renumber: %w", kind, id, err)
		}
		result.Renumbered = append(result.Renumbered, item)
	}

	logger.Debugf("Applied %s order batch: %d requested, %d applied, %d renumbered.",
		kind, len(tuples), result.AppliedCount(), len(result.Renumbered))
	return result, nil
}

func validateTuple(kind string, t request, list *ordering.List, seen map[string]int) error {
	switch {
	case t.id == "":
		return exception.NewValidationError(moduleName, fmt.Sprintf("%s update #%d: id is required", kind, t.index+1), nil)
	case math.IsNaN(t.position) || math.IsInf(t.position, 0):
		return exception.NewValidationError(moduleName, fmt.Sprintf("%s %s: order must be a finite number", kind, t.id), nil)
	case t.position < 0:
		return exception.NewValidationError(moduleName, fmt.Sprintf("%s %s: order must not be negative", kind, t.id), nil)
	case t.updatedBy == "":
		return exception.NewValidationError(moduleName, fmt.Sprintf("%s %s: updatedBy is required", kind, t.id), nil)
	case !list.Contains(t.id):
		return exception.NewNotFoundError(moduleName, fmt.Sprintf("%s %s does not belong to this scope", kind, t.id), nil)
	}
	if first, dup := seen[t.id]; dup {
		return exception.NewValidationError(moduleName, fmt.Sprintf("%s %s: duplicate of update #%d", kind, t.id, first+1), nil)
	}
	return nil
}
