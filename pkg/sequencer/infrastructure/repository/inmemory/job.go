package inmemory

import (
	"context"
	"fmt"
	"sort"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"

	"github.com/shopspring/decimal"
)

// SaveJob persists a new job.
// It returns an error if a job with the same ID already exists.
func (r *InMemorySequencingRepository) SaveJob(ctx context.Context, job *model.Job) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}
	r.data.jobs[job.ID] = *job
	return nil
}

// FindJob finds a job by ID within the company.
func (r *InMemorySequencingRepository) FindJob(ctx context.Context, companyID, jobID string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.data.jobs[jobID]
	if !ok || job.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", repository.ErrJobNotFound, jobID)
	}
	return &job, nil
}

// SaveMakeMethod persists a new make method.
func (r *InMemorySequencingRepository) SaveMakeMethod(ctx context.Context, method *model.JobMakeMethod) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.methods[method.ID]; exists {
		return fmt.Errorf("make method with ID %s already exists", method.ID)
	}
	r.data.methods[method.ID] = *method
	return nil
}

// FindMakeMethod finds a make method by ID within the company.
func (r *InMemorySequencingRepository) FindMakeMethod(ctx context.Context, companyID, id string) (*model.JobMakeMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.data.methods[id]
	if !ok || m.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", repository.ErrMakeMethodNotFound, id)
	}
	return &m, nil
}

// ListMakeMethodsByJob returns all make methods of the job, root first, then by creation time.
func (r *InMemorySequencingRepository) ListMakeMethodsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMakeMethod, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var methods []*model.JobMakeMethod
	for _, m := range r.data.methods {
		if m.JobID == jobID && m.CompanyID == companyID {
			m := m
			methods = append(methods, &m)
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		a, b := methods[i], methods[j]
		if a.IsRoot() != b.IsRoot() {
			return a.IsRoot()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return methods, nil
}

// UpdateMakeMethodQuantity writes the derived output quantity of a make method.
func (r *InMemorySequencingRepository) UpdateMakeMethodQuantity(ctx context.Context, id string, quantity decimal.Decimal, updatedBy string, at time.Time) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.data.methods[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrMakeMethodNotFound, id)
	}
	m.Quantity = quantity
	m.Touch(updatedBy, at)
	r.data.methods[id] = m
	return nil
}

// SaveMaterial persists a new job material.
func (r *InMemorySequencingRepository) SaveMaterial(ctx context.Context, material *model.JobMaterial) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data.materials[material.ID]; exists {
		return fmt.Errorf("job material with ID %s already exists", material.ID)
	}
	r.data.materials[material.ID] = *material
	return nil
}

// FindMaterial finds a job material by ID within the company.
func (r *InMemorySequencingRepository) FindMaterial(ctx context.Context, companyID, id string) (*model.JobMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.data.materials[id]
	if !ok || m.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", repository.ErrMaterialNotFound, id)
	}
	return &m, nil
}

// ListMaterialsByJob returns the materials of every make method of the job.
func (r *InMemorySequencingRepository) ListMaterialsByJob(ctx context.Context, companyID, jobID string) ([]*model.JobMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var materials []*model.JobMaterial
	for _, m := range r.data.materials {
		method, ok := r.data.methods[m.JobMakeMethodID]
		if !ok || method.JobID != jobID || m.CompanyID != companyID {
			continue
		}
		m := m
		materials = append(materials, &m)
	}
	sort.Slice(materials, func(i, j int) bool {
		if !materials[i].CreatedAt.Equal(materials[j].CreatedAt) {
			return materials[i].CreatedAt.Before(materials[j].CreatedAt)
		}
		return materials[i].ID < materials[j].ID
	})
	return materials, nil
}

// UpdateMaterialEstimate writes the derived estimated quantity of a material.
func (r *InMemorySequencingRepository) UpdateMaterialEstimate(ctx context.Context, id string, estimated decimal.Decimal, updatedBy string, at time.Time) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.data.materials[id]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrMaterialNotFound, id)
	}
	m.EstimatedQuantity = estimated
	m.Touch(updatedBy, at)
	r.data.materials[id] = m
	return nil
}

// DetachMaterialsFromOperation clears the operation reference of every material consumed at operationID.
func (r *InMemorySequencingRepository) DetachMaterialsFromOperation(ctx context.Context, operationID, updatedBy string, at time.Time) (int64, error) {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, m := range r.data.materials {
		if m.JobOperationID != operationID {
			continue
		}
		m.JobOperationID = ""
		m.Touch(updatedBy, at)
		r.data.materials[id] = m
		n++
	}
	return n, nil
}
