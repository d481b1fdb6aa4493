package sql

import (
	"encoding/json"
	"fmt"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"

	"gorm.io/datatypes"
)

// --- Mapper functions ---

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func fromDomainAudit(a model.Audit) AuditColumns {
	return AuditColumns{CreatedBy: a.CreatedBy, CreatedAt: a.CreatedAt, UpdatedBy: a.UpdatedBy, UpdatedAt: a.UpdatedAt}
}

func toDomainAudit(a AuditColumns) model.Audit {
	return model.Audit{CreatedBy: a.CreatedBy, CreatedAt: a.CreatedAt, UpdatedBy: a.UpdatedBy, UpdatedAt: a.UpdatedAt}
}

func fromDomainJob(j *model.Job) *JobEntity {
	return &JobEntity{
		ID:           j.ID,
		JobID:        j.JobID,
		CompanyID:    j.CompanyID,
		ItemID:       j.ItemID,
		Quantity:     j.Quantity,
		AuditColumns: fromDomainAudit(j.Audit),
	}
}

func toDomainJob(e *JobEntity) *model.Job {
	return &model.Job{
		ID:        e.ID,
		JobID:     e.JobID,
		CompanyID: e.CompanyID,
		ItemID:    e.ItemID,
		Quantity:  e.Quantity,
		Audit:     toDomainAudit(e.AuditColumns),
	}
}

func fromDomainMakeMethod(m *model.JobMakeMethod) *JobMakeMethodEntity {
	return &JobMakeMethodEntity{
		ID:               m.ID,
		JobID:            m.JobID,
		CompanyID:        m.CompanyID,
		ItemID:           m.ItemID,
		ParentMaterialID: optional(m.ParentMaterialID),
		Quantity:         m.Quantity,
		AuditColumns:     fromDomainAudit(m.Audit),
	}
}

func toDomainMakeMethod(e *JobMakeMethodEntity) *model.JobMakeMethod {
	return &model.JobMakeMethod{
		ID:               e.ID,
		JobID:            e.JobID,
		CompanyID:        e.CompanyID,
		ItemID:           e.ItemID,
		ParentMaterialID: deref(e.ParentMaterialID),
		Quantity:         e.Quantity,
		Audit:            toDomainAudit(e.AuditColumns),
	}
}

func fromDomainMaterial(m *model.JobMaterial) *JobMaterialEntity {
	methodType := m.MethodType
	if methodType == "" {
		methodType = model.MethodTypeBuy
	}
	return &JobMaterialEntity{
		ID:                m.ID,
		JobMakeMethodID:   m.JobMakeMethodID,
		JobOperationID:    optional(m.JobOperationID),
		CompanyID:         m.CompanyID,
		ItemID:            m.ItemID,
		MethodType:        string(methodType),
		QuantityPerParent: m.QuantityPerParent,
		EstimatedQuantity: m.EstimatedQuantity,
		AuditColumns:      fromDomainAudit(m.Audit),
	}
}

func toDomainMaterial(e *JobMaterialEntity) *model.JobMaterial {
	return &model.JobMaterial{
		ID:                e.ID,
		JobMakeMethodID:   e.JobMakeMethodID,
		JobOperationID:    deref(e.JobOperationID),
		CompanyID:         e.CompanyID,
		ItemID:            e.ItemID,
		MethodType:        model.MethodType(e.MethodType),
		QuantityPerParent: e.QuantityPerParent,
		EstimatedQuantity: e.EstimatedQuantity,
		Audit:             toDomainAudit(e.AuditColumns),
	}
}

// encodeDependsOn returns the JSON column value of a predecessor set. An empty set is NULL.
func encodeDependsOn(ids []string) (datatypes.JSON, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeDependsOn(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func fromDomainOperation(op *model.Operation) (*OperationEntity, error) {
	deps, err := encodeDependsOn(op.DependsOn)
	if err != nil {
		return nil, fmt.Errorf("encode dependencies of operation %s: %w", op.ID, err)
	}
	order := op.OperationOrder
	if order == "" {
		order = model.OperationOrderAfterPrevious
	}
	return &OperationEntity{
		ID:              op.ID,
		JobID:           op.JobID,
		JobMakeMethodID: op.JobMakeMethodID,
		CompanyID:       op.CompanyID,
		Description:     op.Description,
		SortOrder:       op.SortOrder,
		WorkCenterID:    optional(op.WorkCenterID),
		OperationOrder:  string(order),
		SetupTime:       op.SetupTime,
		LaborTime:       op.LaborTime,
		MachineTime:     op.MachineTime,
		ScrapPercent:    op.ScrapPercent,
		Priority:        op.Priority,
		DependsOn:       deps,
		AuditColumns:    fromDomainAudit(op.Audit),
	}, nil
}

func toDomainOperation(e *OperationEntity) (*model.Operation, error) {
	deps, err := decodeDependsOn(e.DependsOn)
	if err != nil {
		return nil, fmt.Errorf("decode dependencies of operation %s: %w", e.ID, err)
	}
	return &model.Operation{
		ID:              e.ID,
		JobID:           e.JobID,
		JobMakeMethodID: e.JobMakeMethodID,
		CompanyID:       e.CompanyID,
		Description:     e.Description,
		SortOrder:       e.SortOrder,
		WorkCenterID:    deref(e.WorkCenterID),
		OperationOrder:  model.OperationOrder(e.OperationOrder),
		SetupTime:       e.SetupTime,
		LaborTime:       e.LaborTime,
		MachineTime:     e.MachineTime,
		ScrapPercent:    e.ScrapPercent,
		Priority:        e.Priority,
		DependsOn:       deps,
		Audit:           toDomainAudit(e.AuditColumns),
	}, nil
}

func fromDomainStep(s *model.OperationStep) *OperationStepEntity {
	return &OperationStepEntity{
		ID:           s.ID,
		OperationID:  s.OperationID,
		CompanyID:    s.CompanyID,
		Name:         s.Name,
		Description:  s.Description,
		Type:         string(s.Type),
		SortOrder:    s.SortOrder,
		AuditColumns: fromDomainAudit(s.Audit),
	}
}

func toDomainStep(e *OperationStepEntity) *model.OperationStep {
	return &model.OperationStep{
		ID:          e.ID,
		OperationID: e.OperationID,
		CompanyID:   e.CompanyID,
		Name:        e.Name,
		Description: e.Description,
		Type:        model.StepType(e.Type),
		SortOrder:   e.SortOrder,
		Audit:       toDomainAudit(e.AuditColumns),
	}
}

func fromDomainParameter(p *model.OperationParameter) *OperationParameterEntity {
	return &OperationParameterEntity{
		ID:           p.ID,
		OperationID:  p.OperationID,
		CompanyID:    p.CompanyID,
		Key:          p.Key,
		Value:        p.Value,
		AuditColumns: fromDomainAudit(p.Audit),
	}
}

func toDomainParameter(e *OperationParameterEntity) *model.OperationParameter {
	return &model.OperationParameter{
		ID:          e.ID,
		OperationID: e.OperationID,
		CompanyID:   e.CompanyID,
		Key:         e.Key,
		Value:       e.Value,
		Audit:       toDomainAudit(e.AuditColumns),
	}
}

func fromDomainTool(t *model.OperationTool) *OperationToolEntity {
	return &OperationToolEntity{
		ID:           t.ID,
		OperationID:  t.OperationID,
		CompanyID:    t.CompanyID,
		ToolID:       t.ToolID,
		Quantity:     t.Quantity,
		AuditColumns: fromDomainAudit(t.Audit),
	}
}

func toDomainTool(e *OperationToolEntity) *model.OperationTool {
	return &model.OperationTool{
		ID:          e.ID,
		OperationID: e.OperationID,
		CompanyID:   e.CompanyID,
		ToolID:      e.ToolID,
		Quantity:    e.Quantity,
		Audit:       toDomainAudit(e.AuditColumns),
	}
}

func fromDomainDispatchItem(d *model.MaintenanceDispatchItem) *DispatchItemEntity {
	return &DispatchItemEntity{
		ID:                    d.ID,
		MaintenanceDispatchID: d.MaintenanceDispatchID,
		OperationID:           optional(d.OperationID),
		CompanyID:             d.CompanyID,
		ItemID:                d.ItemID,
		Quantity:              d.Quantity,
		AuditColumns:          fromDomainAudit(d.Audit),
	}
}

func fromDomainRequirement(r *model.OperationRequirement) RequirementEntity {
	return RequirementEntity{
		OperationID:                 r.OperationID,
		JobMakeMethodID:             r.JobMakeMethodID,
		JobID:                       r.JobID,
		CompanyID:                   r.CompanyID,
		InputQuantity:               r.InputQuantity,
		OutputQuantity:              r.OutputQuantity,
		MaterialQuantity:            r.MaterialQuantity,
		AccumulatedMaterialQuantity: r.AccumulatedMaterialQuantity,
		EstimatedHours:              r.EstimatedHours,
		AccumulatedHours:            r.AccumulatedHours,
		CalculatedAt:                r.CalculatedAt,
	}
}

func toDomainRequirement(e *RequirementEntity) *model.OperationRequirement {
	return &model.OperationRequirement{
		OperationID:                 e.OperationID,
		JobMakeMethodID:             e.JobMakeMethodID,
		JobID:                       e.JobID,
		CompanyID:                   e.CompanyID,
		InputQuantity:               e.InputQuantity,
		OutputQuantity:              e.OutputQuantity,
		MaterialQuantity:            e.MaterialQuantity,
		AccumulatedMaterialQuantity: e.AccumulatedMaterialQuantity,
		EstimatedHours:              e.EstimatedHours,
		AccumulatedHours:            e.AccumulatedHours,
		CalculatedAt:                e.CalculatedAt,
	}
}

func fromDomainAuditRecord(a *model.GraphRecomputeAudit) *AuditEntity {
	return &AuditEntity{
		ID:           a.ID,
		CapabilityID: a.CapabilityID,
		CompanyID:    a.CompanyID,
		JobID:        a.JobID,
		ActingUserID: a.ActingUserID,
		Action:       string(a.Action),
		Outcome:      string(a.Outcome),
		Detail:       a.Detail,
		CreatedAt:    a.CreatedAt,
	}
}

func toDomainAuditRecord(e *AuditEntity) *model.GraphRecomputeAudit {
	return &model.GraphRecomputeAudit{
		ID:           e.ID,
		CapabilityID: e.CapabilityID,
		CompanyID:    e.CompanyID,
		JobID:        e.JobID,
		ActingUserID: e.ActingUserID,
		Action:       model.AuditAction(e.Action),
		Outcome:      model.AuditOutcome(e.Outcome),
		Detail:       e.Detail,
		CreatedAt:    e.CreatedAt,
	}
}
