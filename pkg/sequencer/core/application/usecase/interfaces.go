package usecase

import (
	"context"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/orderstore"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/requirement"

	"github.com/shopspring/decimal"
)

// Mutation kinds reported to listeners and metrics.
const (
	KindInsertOperation   = "insert_operation"
	KindDeleteOperation   = "delete_operation"
	KindReorderOperations = "reorder_operations"
	KindReorderSteps      = "reorder_steps"
	KindUpdateOperation   = "update_operation"
	KindInsertStep        = "insert_step"
	KindInsertParameter   = "insert_parameter"
	KindDeleteParameter   = "delete_parameter"
	KindInsertTool        = "insert_tool"
	KindDeleteTool        = "delete_tool"
	KindRecalculateJob    = "recalculate_job"
	KindExportSchedule    = "export_schedule"
)

// NewOperation is the input of InsertOperation.
type NewOperation struct {
	JobID           string
	JobMakeMethodID string
	Description     string
	WorkCenterID    string
	OperationOrder  model.OperationOrder
	SetupTime       decimal.Decimal
	LaborTime       decimal.Decimal
	MachineTime     decimal.Decimal
	ScrapPercent    decimal.Decimal
	Priority        int
	// Position is the 1-based position to insert at. Zero appends.
	Position int
}

// NewStep is the input of InsertStep.
type NewStep struct {
	Name        string
	Description string
	Type        model.StepType
}

// Result is the outcome of a mutating use case.
type Result struct {
	// ID is the identifier of a created entity.
	ID string
	// Batch is set by the reorder use cases.
	Batch *orderstore.BatchResult
	// Dependencies and Requirements are set when the recomputation ran to completion.
	Dependencies *dependency.Result
	Requirements *requirement.Result
	// Stale reports that the mutation persisted but a recomputation failed.
	// RecalculateJob repairs the job.
	Stale bool
}

// OperationView is an operation with its current requirement row.
type OperationView struct {
	Operation   *model.Operation
	Requirement *model.OperationRequirement
}

// ScheduleExporter writes the schedule of one job to durable storage.
type ScheduleExporter interface {
	// Export writes rows and returns the object name they were written to.
	Export(ctx context.Context, companyID, jobID string, rows []model.ScheduleRow) (string, error)
}

// JobOperationService is the entry point of every sequencing mutation.
// Mutations run the dependency recalculation and then the requirement propagation
// of the affected make methods, sequentially, under a graph-recompute grant.
type JobOperationService interface {
	InsertOperation(ctx context.Context, actor model.Actor, in NewOperation) (Result, error)
	DeleteOperation(ctx context.Context, actor model.Actor, jobID, operationID string) (Result, error)
	ReorderOperations(ctx context.Context, actor model.Actor, jobID string, updates []model.OperationOrderUpdate) (Result, error)
	ReorderSteps(ctx context.Context, actor model.Actor, operationID string, updates []model.StepOrderUpdate) (Result, error)
	UpdateOperation(ctx context.Context, actor model.Actor, operationID string, cmd model.OperationCommand) (Result, error)

	InsertStep(ctx context.Context, actor model.Actor, operationID string, in NewStep) (Result, error)
	InsertParameter(ctx context.Context, actor model.Actor, operationID, key, value string) (Result, error)
	DeleteParameter(ctx context.Context, actor model.Actor, id string) error
	InsertTool(ctx context.Context, actor model.Actor, operationID, toolID string, quantity decimal.Decimal) (Result, error)
	DeleteTool(ctx context.Context, actor model.Actor, id string) error

	// RecalculateJob reruns both recomputations for the whole job.
	RecalculateJob(ctx context.Context, actor model.Actor, jobID string) (Result, error)
	// GetOperation returns one operation of the actor's company.
	GetOperation(ctx context.Context, actor model.Actor, operationID string) (*model.Operation, error)
	// ListOperations returns the job's operations in order.
	ListOperations(ctx context.Context, actor model.Actor, jobID string) ([]OperationView, error)
	// ExportSchedule writes the job's schedule and returns the object name.
	ExportSchedule(ctx context.Context, actor model.Actor, jobID string) (string, error)
}
