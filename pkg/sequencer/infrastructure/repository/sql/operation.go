package sql

import (
	"context"
	"fmt"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
)

// --- Operation implementation ---

func (r *SQLSequencingRepository) InsertOperation(ctx context.Context, op *model.Operation) error {
	entity, err := fromDomainOperation(op)
	if err != nil {
		return exception.NewInternalError("SQLSequencingRepository.InsertOperation", "failed to map operation", err)
	}
	return r.create(ctx, "SQLSequencingRepository.InsertOperation", entity, fmt.Sprintf("operation %s", op.ID))
}

func (r *SQLSequencingRepository) FindOperation(ctx context.Context, companyID, id string) (*model.Operation, error) {
	const op = "SQLSequencingRepository.FindOperation"
	var entities []OperationEntity
	if err := r.query(ctx, op, &entities, map[string]interface{}{"id": id, "company_id": companyID}, "", 1); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	found, err := toDomainOperation(&entities[0])
	if err != nil {
		return nil, exception.NewInternalError(op, "stored operation is corrupt", err)
	}
	return found, nil
}

func (r *SQLSequencingRepository) ListOperationsByJob(ctx context.Context, companyID, jobID string) ([]*model.Operation, error) {
	const op = "SQLSequencingRepository.ListOperationsByJob"
	var entities []OperationEntity
	if err := r.query(ctx, op, &entities, map[string]interface{}{"company_id": companyID, "job_id": jobID}, "sort_order, created_at, id", 0); err != nil {
		return nil, err
	}
	ops := make([]*model.Operation, 0, len(entities))
	for i := range entities {
		o, err := toDomainOperation(&entities[i])
		if err != nil {
			return nil, exception.NewInternalError(op, "stored operation is corrupt", err)
		}
		ops = append(ops, o)
	}
	return ops, nil
}

func (r *SQLSequencingRepository) UpdateOperation(ctx context.Context, op *model.Operation) error {
	values := map[string]interface{}{
		"description":     op.Description,
		"work_center_id":  optional(op.WorkCenterID),
		"operation_order": string(op.OperationOrder),
		"setup_time":      op.SetupTime,
		"labor_time":      op.LaborTime,
		"machine_time":    op.MachineTime,
		"scrap_percent":   op.ScrapPercent,
		"priority":        op.Priority,
		"updated_by":      op.UpdatedBy,
		"updated_at":      op.UpdatedAt,
	}
	_, err := r.updateColumns(ctx, "SQLSequencingRepository.UpdateOperation", OperationEntity{}.TableName(),
		map[string]interface{}{"id": op.ID}, values, repository.ErrOperationNotFound)
	return err
}

func (r *SQLSequencingRepository) UpdateOperationSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error {
	_, err := r.updateColumns(ctx, "SQLSequencingRepository.UpdateOperationSortOrder", OperationEntity{}.TableName(),
		map[string]interface{}{"id": id},
		stamp(updatedBy, at, map[string]interface{}{"sort_order": sortOrder}),
		repository.ErrOperationNotFound)
	return err
}

func (r *SQLSequencingRepository) UpdateOperationDependencies(ctx context.Context, id string, dependsOn []string, updatedBy string, at time.Time) error {
	const op = "SQLSequencingRepository.UpdateOperationDependencies"
	encoded, err := encodeDependsOn(dependsOn)
	if err != nil {
		return exception.NewInternalError(op, "failed to encode dependencies", err)
	}
	var value interface{}
	if encoded != nil {
		value = encoded
	}
	_, err = r.updateColumns(ctx, op, OperationEntity{}.TableName(),
		map[string]interface{}{"id": id},
		stamp(updatedBy, at, map[string]interface{}{"depends_on": value}),
		repository.ErrOperationNotFound)
	return err
}

func (r *SQLSequencingRepository) DeleteOperation(ctx context.Context, companyID, id string) error {
	n, err := r.remove(ctx, "SQLSequencingRepository.DeleteOperation", &OperationEntity{}, map[string]interface{}{"id": id, "company_id": companyID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", repository.ErrOperationNotFound, id)
	}
	return nil
}

// --- Step implementation ---

func (r *SQLSequencingRepository) InsertStep(ctx context.Context, step *model.OperationStep) error {
	return r.create(ctx, "SQLSequencingRepository.InsertStep", fromDomainStep(step), fmt.Sprintf("step %s", step.ID))
}

func (r *SQLSequencingRepository) ListStepsByOperation(ctx context.Context, operationID string) ([]*model.OperationStep, error) {
	var entities []OperationStepEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListStepsByOperation", &entities, map[string]interface{}{"operation_id": operationID}, "sort_order, created_at, id", 0); err != nil {
		return nil, err
	}
	steps := make([]*model.OperationStep, len(entities))
	for i := range entities {
		steps[i] = toDomainStep(&entities[i])
	}
	return steps, nil
}

func (r *SQLSequencingRepository) UpdateStepSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error {
	_, err := r.updateColumns(ctx, "SQLSequencingRepository.UpdateStepSortOrder", OperationStepEntity{}.TableName(),
		map[string]interface{}{"id": id},
		stamp(updatedBy, at, map[string]interface{}{"sort_order": sortOrder}),
		repository.ErrStepNotFound)
	return err
}

func (r *SQLSequencingRepository) DeleteStepsByOperation(ctx context.Context, operationID string) (int64, error) {
	return r.remove(ctx, "SQLSequencingRepository.DeleteStepsByOperation", &OperationStepEntity{}, map[string]interface{}{"operation_id": operationID})
}
