package repository

import (
	"context"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
)

// Operation defines persistence of job operations.
type Operation interface {
	// InsertOperation persists a new operation.
	InsertOperation(ctx context.Context, op *model.Operation) error

	// FindOperation finds an operation by ID within the company.
	FindOperation(ctx context.Context, companyID, id string) (*model.Operation, error)

	// ListOperationsByJob returns the job's operations ordered by sort order, creation time and ID.
	// It is not filtered by user.
	ListOperationsByJob(ctx context.Context, companyID, jobID string) ([]*model.Operation, error)

	// UpdateOperation writes the mutable attributes of op (description, work center,
	// operation order, times, scrap, priority) and its audit stamp.
	UpdateOperation(ctx context.Context, op *model.Operation) error

	// UpdateOperationSortOrder writes the position of a single operation.
	UpdateOperationSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error

	// UpdateOperationDependencies writes the direct predecessor set of a single operation.
	UpdateOperationDependencies(ctx context.Context, id string, dependsOn []string, updatedBy string, at time.Time) error

	// DeleteOperation removes the operation row.
	DeleteOperation(ctx context.Context, companyID, id string) error
}

// Step defines persistence of operation steps.
type Step interface {
	InsertStep(ctx context.Context, step *model.OperationStep) error
	// ListStepsByOperation returns the steps of an operation ordered by sort order.
	ListStepsByOperation(ctx context.Context, operationID string) ([]*model.OperationStep, error)
	UpdateStepSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error
	DeleteStepsByOperation(ctx context.Context, operationID string) (int64, error)
}

// Attachment defines persistence of rows that hang off an operation without
// participating in the dependency graph.
type Attachment interface {
	InsertParameter(ctx context.Context, p *model.OperationParameter) error
	ListParametersByOperation(ctx context.Context, operationID string) ([]*model.OperationParameter, error)
	DeleteParameter(ctx context.Context, companyID, id string) error
	DeleteParametersByOperation(ctx context.Context, operationID string) (int64, error)

	InsertTool(ctx context.Context, t *model.OperationTool) error
	ListToolsByOperation(ctx context.Context, operationID string) ([]*model.OperationTool, error)
	DeleteTool(ctx context.Context, companyID, id string) error
	DeleteToolsByOperation(ctx context.Context, operationID string) (int64, error)

	SaveDispatchItem(ctx context.Context, item *model.MaintenanceDispatchItem) error
	// DetachDispatchItems clears the operation reference of maintenance dispatch items.
	DetachDispatchItems(ctx context.Context, operationID string) (int64, error)
}

// Requirement defines persistence of derived operation requirements.
type Requirement interface {
	// UpsertRequirements inserts or replaces one row per operation.
	UpsertRequirements(ctx context.Context, reqs []*model.OperationRequirement) error
	ListRequirementsByJob(ctx context.Context, companyID, jobID string) ([]*model.OperationRequirement, error)
	DeleteRequirement(ctx context.Context, operationID string) error
}

// Audit defines persistence of graph-recompute audit records.
type Audit interface {
	SaveAudit(ctx context.Context, record *model.GraphRecomputeAudit) error
	ListAuditsByJob(ctx context.Context, companyID, jobID string) ([]*model.GraphRecomputeAudit, error)
}
