package sql

import (
	"context"
	"fmt"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
)

// --- Attachment implementation ---

func (r *SQLSequencingRepository) InsertParameter(ctx context.Context, p *model.OperationParameter) error {
	return r.create(ctx, "SQLSequencingRepository.InsertParameter", fromDomainParameter(p), fmt.Sprintf("parameter %s", p.ID))
}

func (r *SQLSequencingRepository) ListParametersByOperation(ctx context.Context, operationID string) ([]*model.OperationParameter, error) {
	var entities []OperationParameterEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListParametersByOperation", &entities, map[string]interface{}{"operation_id": operationID}, "param_key, id", 0); err != nil {
		return nil, err
	}
	params := make([]*model.OperationParameter, len(entities))
	for i := range entities {
		params[i] = toDomainParameter(&entities[i])
	}
	return params, nil
}

func (r *SQLSequencingRepository) DeleteParameter(ctx context.Context, companyID, id string) error {
	n, err := r.remove(ctx, "SQLSequencingRepository.DeleteParameter", &OperationParameterEntity{}, map[string]interface{}{"id": id, "company_id": companyID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: parameter %s", repository.ErrAttachmentNotFound, id)
	}
	return nil
}

func (r *SQLSequencingRepository) DeleteParametersByOperation(ctx context.Context, operationID string) (int64, error) {
	return r.remove(ctx, "SQLSequencingRepository.DeleteParametersByOperation", &OperationParameterEntity{}, map[string]interface{}{"operation_id": operationID})
}

func (r *SQLSequencingRepository) InsertTool(ctx context.Context, t *model.OperationTool) error {
	return r.create(ctx, "SQLSequencingRepository.InsertTool", fromDomainTool(t), fmt.Sprintf("tool %s", t.ID))
}

func (r *SQLSequencingRepository) ListToolsByOperation(ctx context.Context, operationID string) ([]*model.OperationTool, error) {
	var entities []OperationToolEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListToolsByOperation", &entities, map[string]interface{}{"operation_id": operationID}, "tool_id, id", 0); err != nil {
		return nil, err
	}
	tools := make([]*model.OperationTool, len(entities))
	for i := range entities {
		tools[i] = toDomainTool(&entities[i])
	}
	return tools, nil
}

func (r *SQLSequencingRepository) DeleteTool(ctx context.Context, companyID, id string) error {
	n, err := r.remove(ctx, "SQLSequencingRepository.DeleteTool", &OperationToolEntity{}, map[string]interface{}{"id": id, "company_id": companyID})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: tool %s", repository.ErrAttachmentNotFound, id)
	}
	return nil
}

func (r *SQLSequencingRepository) DeleteToolsByOperation(ctx context.Context, operationID string) (int64, error) {
	return r.remove(ctx, "SQLSequencingRepository.DeleteToolsByOperation", &OperationToolEntity{}, map[string]interface{}{"operation_id": operationID})
}

func (r *SQLSequencingRepository) SaveDispatchItem(ctx context.Context, item *model.MaintenanceDispatchItem) error {
	return r.create(ctx, "SQLSequencingRepository.SaveDispatchItem", fromDomainDispatchItem(item), fmt.Sprintf("maintenance dispatch item %s", item.ID))
}

func (r *SQLSequencingRepository) DetachDispatchItems(ctx context.Context, operationID string) (int64, error) {
	return r.updateColumns(ctx, "SQLSequencingRepository.DetachDispatchItems", DispatchItemEntity{}.TableName(),
		map[string]interface{}{"operation_id": operationID},
		map[string]interface{}{"operation_id": nil},
		nil)
}
