package sql

import (
	"context"
	"fmt"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
)

// --- Requirement implementation ---

// UpsertRequirements writes all rows in one statement, replacing rows of operations
// that already have one.
func (r *SQLSequencingRepository) UpsertRequirements(ctx context.Context, reqs []*model.OperationRequirement) error {
	const op = "SQLSequencingRepository.UpsertRequirements"
	if len(reqs) == 0 {
		return nil
	}
	entities := make([]RequirementEntity, len(reqs))
	for i, req := range reqs {
		entities[i] = fromDomainRequirement(req)
	}
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpsert(ctx, &entities, RequirementEntity{}.TableName(), []string{"operation_id"}, requirementUpdateColumns); err != nil {
		return dbError(op, fmt.Sprintf("failed to upsert %d requirements", len(reqs)), executor.IsTableNotExistError, err)
	}
	return nil
}

func (r *SQLSequencingRepository) ListRequirementsByJob(ctx context.Context, companyID, jobID string) ([]*model.OperationRequirement, error) {
	var entities []RequirementEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListRequirementsByJob", &entities, map[string]interface{}{"company_id": companyID, "job_id": jobID}, "operation_id", 0); err != nil {
		return nil, err
	}
	reqs := make([]*model.OperationRequirement, len(entities))
	for i := range entities {
		reqs[i] = toDomainRequirement(&entities[i])
	}
	return reqs, nil
}

// DeleteRequirement removes the requirement row of an operation. A missing row is not an error.
func (r *SQLSequencingRepository) DeleteRequirement(ctx context.Context, operationID string) error {
	_, err := r.remove(ctx, "SQLSequencingRepository.DeleteRequirement", &RequirementEntity{}, map[string]interface{}{"operation_id": operationID})
	return err
}

// --- Audit implementation ---

func (r *SQLSequencingRepository) SaveAudit(ctx context.Context, record *model.GraphRecomputeAudit) error {
	return r.create(ctx, "SQLSequencingRepository.SaveAudit", fromDomainAuditRecord(record), fmt.Sprintf("audit record %s", record.ID))
}

func (r *SQLSequencingRepository) ListAuditsByJob(ctx context.Context, companyID, jobID string) ([]*model.GraphRecomputeAudit, error) {
	var entities []AuditEntity
	if err := r.query(ctx, "SQLSequencingRepository.ListAuditsByJob", &entities, map[string]interface{}{"company_id": companyID, "job_id": jobID}, "created_at, id", 0); err != nil {
		return nil, err
	}
	records := make([]*model.GraphRecomputeAudit, len(entities))
	for i := range entities {
		records[i] = toDomainAuditRecord(&entities[i])
	}
	return records, nil
}
