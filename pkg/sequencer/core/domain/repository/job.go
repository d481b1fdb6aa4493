package repository

import (
	"context"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"

	"github.com/shopspring/decimal"
)

// Job defines persistence of production jobs.
type Job interface {
	// SaveJob persists a new job.
	SaveJob(ctx context.Context, job *model.Job) error
	// FindJob finds a job by ID within the company.
	FindJob(ctx context.Context, companyID, jobID string) (*model.Job, error)
}

// MakeMethod defines persistence of job make methods.
type MakeMethod interface {
	SaveMakeMethod(ctx context.Context, method *model.JobMakeMethod) error
	FindMakeMethod(ctx context.Context, companyID, id string) (*model.JobMakeMethod, error)
	// ListMakeMethodsByJob returns all make methods of the job, root first.
	ListMakeMethodsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMakeMethod, error)
	UpdateMakeMethodQuantity(ctx context.Context, id string, quantity decimal.Decimal, updatedBy string, at time.Time) error
}

// Material defines persistence of job materials.
type Material interface {
	SaveMaterial(ctx context.Context, material *model.JobMaterial) error
	FindMaterial(ctx context.Context, companyID, id string) (*model.JobMaterial, error)
	ListMaterialsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMaterial, error)
	UpdateMaterialEstimate(ctx context.Context, id string, estimated decimal.Decimal, updatedBy string, at time.Time) error
	// DetachMaterialsFromOperation clears the operation reference of every material consumed at operationID.
	DetachMaterialsFromOperation(ctx context.Context, operationID, updatedBy string, at time.Time) (int64, error)
}
