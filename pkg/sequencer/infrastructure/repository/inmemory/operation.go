package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
)

func copyOperation(op model.Operation) *model.Operation {
	op.DependsOn = append([]string(nil), op.DependsOn...)
	return &op
}

// InsertOperation persists a new operation.
func (r *InMemorySequencingRepository) InsertOperation(ctx context.Context, op *model.Operation) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.operations[op.ID]; exists {
		return fmt.Errorf("operation with ID %s already exists", op.ID)
	}
	r.data.operations[op.ID] = *copyOperation(*op)
	return nil
}

// FindOperation finds an operation by ID within the company.
func (r *InMemorySequencingRepository) FindOperation(ctx context.Context, companyID, id string) (*model.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.data.operations[id]
	if !ok || op.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	return copyOperation(op), nil
}

// ListOperationsByJob returns the job's operations ordered by sort order, creation time and ID.
func (r *InMemorySequencingRepository) ListOperationsByJob(ctx context.Context, companyID, jobID string) ([]*model.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ops []*model.Operation
	for _, op := range r.data.operations {
		if op.JobID == jobID && op.CompanyID == companyID {
			ops = append(ops, copyOperation(op))
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ops, nil
}

// UpdateOperation writes the mutable attributes of op and its audit stamp.
func (r *InMemorySequencingRepository) UpdateOperation(ctx context.Context, op *model.Operation) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.data.operations[op.ID]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrOperationNotFound, op.ID)
	}
	stored.Description = op.Description
	stored.WorkCenterID = op.WorkCenterID
	stored.OperationOrder = op.OperationOrder
	stored.SetupTime = op.SetupTime
	stored.LaborTime = op.LaborTime
	stored.MachineTime = op.MachineTime
	stored.ScrapPercent = op.ScrapPercent
	stored.Priority = op.Priority
	stored.UpdatedBy = op.UpdatedBy
	stored.UpdatedAt = op.UpdatedAt
	r.data.operations[op.ID] = stored
	return nil
}

// UpdateOperationSortOrder writes the position of a single operation.
func (r *InMemorySequencingRepository) UpdateOperationSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.data.operations[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	op.SortOrder = sortOrder
	op.Touch(updatedBy, at)
	r.data.operations[id] = op
	return nil
}

// UpdateOperationDependencies writes the direct predecessor set of a single operation.
func (r *InMemorySequencingRepository) UpdateOperationDependencies(ctx context.Context, id string, dependsOn []string, updatedBy string, at time.Time) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.data.operations[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	op.DependsOn = append([]string(nil), dependsOn...)
	op.Touch(updatedBy, at)
	r.data.operations[id] = op
	return nil
}

// DeleteOperation removes the operation row.
func (r *InMemorySequencingRepository) DeleteOperation(ctx context.Context, companyID, id string) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.data.operations[id]
	if !ok || op.CompanyID != companyID {
		return fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	delete(r.data.operations, id)
	return nil
}

// InsertStep persists a new operation step.
func (r *InMemorySequencingRepository) InsertStep(ctx context.Context, step *model.OperationStep) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.steps[step.ID]; exists {
		return fmt.Errorf("operation step with ID %s already exists", step.ID)
	}
	r.data.steps[step.ID] = *step
	return nil
}

// ListStepsByOperation returns the steps of an operation ordered by sort order.
func (r *InMemorySequencingRepository) ListStepsByOperation(ctx context.Context, operationID string) ([]*model.OperationStep, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var steps []*model.OperationStep
	for _, st := range r.data.steps {
		if st.OperationID == operationID {
			st := st
			steps = append(steps, &st)
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].SortOrder != steps[j].SortOrder {
			return steps[i].SortOrder < steps[j].SortOrder
		}
		if !steps[i].CreatedAt.Equal(steps[j].CreatedAt) {
			return steps[i].CreatedAt.Before(steps[j].CreatedAt)
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

// UpdateStepSortOrder writes the position of a single step.
func (r *InMemorySequencingRepository) UpdateStepSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.data.steps[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrStepNotFound, id)
	}
	st.SortOrder = sortOrder
	st.Touch(updatedBy, at)
	r.data.steps[id] = st
	return nil
}

// DeleteStepsByOperation removes every step of an operation.
func (r *InMemorySequencingRepository) DeleteStepsByOperation(ctx context.Context, operationID string) (int64, error) {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, st := range r.data.steps {
		if st.OperationID == operationID {
			delete(r.data.steps, id)
			n++
		}
	}
	return n, nil
}
