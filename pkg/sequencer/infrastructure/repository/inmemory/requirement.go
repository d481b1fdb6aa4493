package inmemory

import (
	"context"
	"sort"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
)

// UpsertRequirements inserts or replaces one row per operation.
func (r *InMemorySequencingRepository) UpsertRequirements(ctx context.Context, reqs []*model.OperationRequirement) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, req := range reqs {
		r.data.requirements[req.OperationID] = *req
	}
	return nil
}

// ListRequirementsByJob returns the requirement rows of a job ordered by operation ID.
func (r *InMemorySequencingRepository) ListRequirementsByJob(ctx context.Context, companyID, jobID string) ([]*model.OperationRequirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reqs []*model.OperationRequirement
	for _, req := range r.data.requirements {
		if req.JobID == jobID && req.CompanyID == companyID {
			req := req
			reqs = append(reqs, &req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].OperationID < reqs[j].OperationID })
	return reqs, nil
}

// DeleteRequirement removes the requirement row of an operation. A missing row is not an error.
func (r *InMemorySequencingRepository) DeleteRequirement(ctx context.Context, operationID string) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.data.requirements, operationID)
	return nil
}

// SaveAudit appends a graph-recompute audit record.
func (r *InMemorySequencingRepository) SaveAudit(ctx context.Context, record *model.GraphRecomputeAudit) error {
	defer r.lockWrite(ctx)()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.audits = append(r.data.audits, *record)
	return nil
}

// ListAuditsByJob returns the audit records of a job in insertion order.
func (r *InMemorySequencingRepository) ListAuditsByJob(ctx context.Context, companyID, jobID string) ([]*model.GraphRecomputeAudit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*model.GraphRecomputeAudit
	for _, a := range r.data.audits {
		if a.JobID == jobID && a.CompanyID == companyID {
			a := a
			records = append(records, &a)
		}
	}
	return records, nil
}
