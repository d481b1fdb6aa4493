package requirement

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/shopspring/decimal"
)

const moduleName = "requirement"

// Repository is the persistence the propagator reads from and writes to.
type Repository interface {
	repository.Job
	repository.MakeMethod
	repository.Material
	repository.Operation
	repository.Requirement
}

// Result summarizes one propagation.
type Result struct {
	JobID string
	// Methods lists the make methods propagated, parents before children.
	Methods []string
	// Requirements holds the rows written, keyed by operation ID.
	Requirements map[string]*model.OperationRequirement
}

// Propagator recomputes and persists the requirements of make methods.
// It reads the stored dependency graph, so the graph must be recalculated first.
type Propagator struct {
	repo   Repository
	issuer *capability.Issuer
	tracer metrics.Tracer
}

// NewPropagator creates a new Propagator.
func NewPropagator(repo Repository, issuer *capability.Issuer, tracer metrics.Tracer) *Propagator {
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Propagator{repo: repo, issuer: issuer, tracer: tracer}
}

// jobState is everything of one job the propagation reads, loaded once.
type jobState struct {
	job        *model.Job
	methods    map[string]*model.JobMakeMethod
	roots      []*model.JobMakeMethod
	children   map[string][]*model.JobMakeMethod // parent material ID -> methods
	materials  map[string]*model.JobMaterial
	byMethod   map[string][]*model.JobMaterial
	operations map[string][]*model.Operation // method ID -> operations in job order
}

// Propagate recomputes the requirements of makeMethodID and, recursively, of every
// sub-assembly method consuming into it.
func (p *Propagator) Propagate(ctx context.Context, grant capability.Grant, makeMethodID string) (Result, error) {
	return p.run(ctx, grant, "requirement.Propagate", func(ctx context.Context, st *jobState, res *Result) error {
		method, ok := st.methods[makeMethodID]
		if !ok {
			return exception.NewNotFoundError(moduleName, fmt.Sprintf("make method %s not found in job %s", makeMethodID, grant.JobID), repository.ErrMakeMethodNotFound)
		}
		q, err := st.quantityOf(method)
		if err != nil {
			return err
		}
		return p.propagateMethod(ctx, grant, st, method, q, map[string]bool{}, res)
	})
}

// PropagateJob recomputes the requirements of every make method of the job.
func (p *Propagator) PropagateJob(ctx context.Context, grant capability.Grant) (Result, error) {
	return p.run(ctx, grant, "requirement.PropagateJob", func(ctx context.Context, st *jobState, res *Result) error {
		visited := map[string]bool{}
		for _, root := range st.roots {
			if err := p.propagateMethod(ctx, grant, st, root, st.job.Quantity, visited, res); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Propagator) run(ctx context.Context, grant capability.Grant, span string, fn func(ctx context.Context, st *jobState, res *Result) error) (result Result, err error) {
	ctx, finish := p.tracer.StartSpan(ctx, span, map[string]string{
		"job.id":     grant.JobID,
		"company.id": grant.CompanyID,
	})
	defer func() { finish(err) }()

	if err := p.issuer.Check(grant, grant.CompanyID, grant.JobID); err != nil {
		return Result{JobID: grant.JobID}, exception.NewPermissionError(moduleName, "graph recompute not authorized", err)
	}

	result = Result{JobID: grant.JobID, Requirements: map[string]*model.OperationRequirement{}}
	st, err := p.load(ctx, grant)
	if err == nil {
		err = fn(ctx, st, &result)
	}

	outcome, detail := model.AuditOutcomeSuccess, fmt.Sprintf("%d methods, %d operations", len(result.Methods), len(result.Requirements))
	if err != nil {
		outcome, detail = model.AuditOutcomeFailure, err.Error()
	}
	if auditErr := p.issuer.Record(ctx, grant, model.AuditActionPropagateRequirements, outcome, detail); auditErr != nil && err == nil {
		err = exception.NewRecalculationError(moduleName, "failed to record propagation audit", auditErr)
	}
	return result, err
}

func (p *Propagator) load(ctx context.Context, grant capability.Grant) (*jobState, error) {
	job, err := p.repo.FindJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, exception.NewNotFoundError(moduleName, fmt.Sprintf("job %s not found", grant.JobID), err)
		}
		return nil, exception.NewRecalculationError(moduleName, "failed to load job", err)
	}
	methods, err := p.repo.ListMakeMethodsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return nil, exception.NewRecalculationError(moduleName, "failed to load make methods", err)
	}
	materials, err := p.repo.ListMaterialsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return nil, exception.NewRecalculationError(moduleName, "failed to load materials", err)
	}
	ops, err := p.repo.ListOperationsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return nil, exception.NewRecalculationError(moduleName, "failed to load operations", err)
	}

	st := &jobState{
		job:        job,
		methods:    make(map[string]*model.JobMakeMethod, len(methods)),
		children:   make(map[string][]*model.JobMakeMethod),
		materials:  make(map[string]*model.JobMaterial, len(materials)),
		byMethod:   make(map[string][]*model.JobMaterial),
		operations: make(map[string][]*model.Operation),
	}
	for _, m := range methods {
		st.methods[m.ID] = m
		if m.IsRoot() {
			st.roots = append(st.roots, m)
		} else {
			st.children[m.ParentMaterialID] = append(st.children[m.ParentMaterialID], m)
		}
	}
	for _, m := range materials {
		st.materials[m.ID] = m
		st.byMethod[m.JobMakeMethodID] = append(st.byMethod[m.JobMakeMethodID], m)
	}
	for _, op := range ops {
		st.operations[op.JobMakeMethodID] = append(st.operations[op.JobMakeMethodID], op)
	}
	return st, nil
}

// quantityOf returns the output quantity of a method: the job quantity for the
// root, the estimated quantity of the parent material otherwise.
func (st *jobState) quantityOf(method *model.JobMakeMethod) (decimal.Decimal, error) {
	if method.IsRoot() {
		return st.job.Quantity, nil
	}
	parent, ok := st.materials[method.ParentMaterialID]
	if !ok {
		return decimal.Zero, exception.NewRecalculationError(moduleName,
			fmt.Sprintf("parent material %s of make method %s not found", method.ParentMaterialID, method.ID), repository.ErrMaterialNotFound)
	}
	return parent.EstimatedQuantity, nil
}

func (p *Propagator) propagateMethod(ctx context.Context, grant capability.Grant, st *jobState, method *model.JobMakeMethod, q decimal.Decimal, visited map[string]bool, res *Result) error {
	if visited[method.ID] {
		logger.Warnf("Job %s: make method %s reached twice during propagation, skipping.", grant.JobID, method.ID)
		return nil
	}
	visited[method.ID] = true
	if err := ctx.Err(); err != nil {
		return err
	}

	plan, err := Compute(MethodSnapshot{
		Method:     method,
		Quantity:   q,
		Operations: st.operations[method.ID],
		Materials:  st.byMethod[method.ID],
	})
	if err != nil {
		return exception.NewRecalculationError(moduleName, fmt.Sprintf("failed to derive requirements of make method %s", method.ID), err)
	}

	at := p.issuer.Now()
	if !method.Quantity.Equal(q) {
		if err := p.repo.UpdateMakeMethodQuantity(ctx, method.ID, q, grant.ActingUserID, at); err != nil {
			return exception.NewRecalculationError(moduleName, fmt.Sprintf("failed to write quantity of make method %s", method.ID), err)
		}
		method.Quantity = q
	}

	if len(plan.Requirements) > 0 {
		for _, r := range plan.Requirements {
			r.CalculatedAt = at
		}
		if err := p.repo.UpsertRequirements(ctx, plan.Requirements); err != nil {
			return exception.NewRecalculationError(moduleName, fmt.Sprintf("failed to write requirements of make method %s", method.ID), err)
		}
	}
	for _, m := range st.byMethod[method.ID] {
		est := plan.MaterialEstimates[m.ID]
		if m.EstimatedQuantity.Equal(est) {
			continue
		}
		if err := p.repo.UpdateMaterialEstimate(ctx, m.ID, est, grant.ActingUserID, at); err != nil {
			return exception.NewRecalculationError(moduleName, fmt.Sprintf("failed to write estimate of material %s", m.ID), err)
		}
		m.EstimatedQuantity = est
	}

	res.Methods = append(res.Methods, method.ID)
	for _, r := range plan.Requirements {
		res.Requirements[r.OperationID] = r
	}
	logger.Debugf("Propagated requirements of make method %s (job %s): quantity %s, %d operations.",
		method.ID, grant.JobID, q, len(plan.Requirements))

	for _, m := range st.byMethod[method.ID] {
		for _, child := range st.children[m.ID] {
			if err := p.propagateMethod(ctx, grant, st, child, m.EstimatedQuantity, visited, res); err != nil {
				return err
			}
		}
	}
	return nil
}
