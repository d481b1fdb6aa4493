package sql

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AuditColumns are the creation and modification stamps shared by every mutable table.
type AuditColumns struct {
	CreatedBy string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedBy string
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

// JobEntity is the persistence model of model.Job.
type JobEntity struct {
	ID        string `gorm:"primaryKey"`
	JobID     string
	CompanyID string
	ItemID    string
	Quantity  decimal.Decimal
	AuditColumns
}

func (JobEntity) TableName() string { return "job" }

// JobMakeMethodEntity is the persistence model of model.JobMakeMethod.
type JobMakeMethodEntity struct {
	ID               string `gorm:"primaryKey"`
	JobID            string
	CompanyID        string
	ItemID           string
	ParentMaterialID *string
	Quantity         decimal.Decimal
	AuditColumns
}

func (JobMakeMethodEntity) TableName() string { return "job_make_method" }

// JobMaterialEntity is the persistence model of model.JobMaterial.
type JobMaterialEntity struct {
	ID                string `gorm:"primaryKey"`
	JobMakeMethodID   string
	JobOperationID    *string
	CompanyID         string
	ItemID            string
	MethodType        string
	QuantityPerParent decimal.Decimal
	EstimatedQuantity decimal.Decimal
	AuditColumns
}

func (JobMaterialEntity) TableName() string { return "job_material" }

// OperationEntity is the persistence model of model.Operation.
// DependsOn holds the predecessor IDs as a JSON array.
type OperationEntity struct {
	ID              string `gorm:"primaryKey"`
	JobID           string
	JobMakeMethodID string
	CompanyID       string
	Description     string
	SortOrder       int
	WorkCenterID    *string
	OperationOrder  string
	SetupTime       decimal.Decimal
	LaborTime       decimal.Decimal
	MachineTime     decimal.Decimal
	ScrapPercent    decimal.Decimal
	Priority        int
	DependsOn       datatypes.JSON
	AuditColumns
}

func (OperationEntity) TableName() string { return "job_operation" }

// OperationStepEntity is the persistence model of model.OperationStep.
type OperationStepEntity struct {
	ID          string `gorm:"primaryKey"`
	OperationID string
	CompanyID   string
	Name        string
	Description string
	Type        string
	SortOrder   int
	AuditColumns
}

func (OperationStepEntity) TableName() string { return "job_operation_step" }

// OperationParameterEntity is the persistence model of model.OperationParameter.
type OperationParameterEntity struct {
	ID          string `gorm:"primaryKey"`
	OperationID string
	CompanyID   string
	Key         string `gorm:"column:param_key"`
	Value       string `gorm:"column:param_value"`
	AuditColumns
}

func (OperationParameterEntity) TableName() string { return "job_operation_parameter" }

// OperationToolEntity is the persistence model of model.OperationTool.
type OperationToolEntity struct {
	ID          string `gorm:"primaryKey"`
	OperationID string
	CompanyID   string
	ToolID      string
	Quantity    decimal.Decimal
	AuditColumns
}

func (OperationToolEntity) TableName() string { return "job_operation_tool" }

// DispatchItemEntity is the persistence model of model.MaintenanceDispatchItem.
type DispatchItemEntity struct {
	ID                    string `gorm:"primaryKey"`
	MaintenanceDispatchID string
	OperationID           *string
	CompanyID             string
	ItemID                string
	Quantity              decimal.Decimal
	AuditColumns
}

func (DispatchItemEntity) TableName() string { return "maintenance_dispatch_item" }

// RequirementEntity is the persistence model of model.OperationRequirement.
type RequirementEntity struct {
	OperationID                 string `gorm:"primaryKey"`
	JobMakeMethodID             string
	JobID                       string
	CompanyID                   string
	InputQuantity               decimal.Decimal
	OutputQuantity              decimal.Decimal
	MaterialQuantity            decimal.Decimal
	AccumulatedMaterialQuantity decimal.Decimal
	EstimatedHours              decimal.Decimal
	AccumulatedHours            decimal.Decimal
	CalculatedAt                time.Time
}

func (RequirementEntity) TableName() string { return "job_operation_requirement" }

// requirementUpdateColumns are replaced when a requirement row already exists.
var requirementUpdateColumns = []string{
	"job_make_method_id", "job_id", "company_id",
	"input_quantity", "output_quantity", "material_quantity",
	"accumulated_material_quantity", "estimated_hours", "accumulated_hours",
	"calculated_at",
}

// AuditEntity is the persistence model of model.GraphRecomputeAudit.
type AuditEntity struct {
	ID           string `gorm:"primaryKey"`
	CapabilityID string
	CompanyID    string
	JobID        string
	ActingUserID string
	Action       string
	Outcome      string
	Detail       string
	CreatedAt    time.Time `gorm:"autoCreateTime:false"`
}

func (AuditEntity) TableName() string { return "graph_recompute_audit" }
