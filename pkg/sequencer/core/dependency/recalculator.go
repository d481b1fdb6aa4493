package dependency

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

	"github.com/hashicorp/go-multierror"
)

const moduleName = "dependency"

// Repository is the persistence the recalculator reads from and writes to.
type Repository interface {
	repository.Job
	repository.MakeMethod
	repository.Material
	repository.Operation
}

// Result summarizes one recalculation.
type Result struct {
	JobID string
	// Operations is the number of operations of the job.
	Operations int
	// Changed is the number of operations whose stored set was rewritten.
	Changed int
	// Dependencies holds the derived direct predecessors of every operation.
	Dependencies map[string][]string
	// Dropped lists candidate edges discarded because they pointed backwards.
	Dropped []Edge
}

// Recalculator rebuilds and persists the dependency graph of a job.
type Recalculator struct {
	repo   Repository
	issuer *capability.Issuer
	tracer metrics.Tracer
}

// NewRecalculator creates a new Recalculator.
func NewRecalculator(repo Repository, issuer *capability.Issuer, tracer metrics.Tracer) *Recalculator {
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Recalculator{repo: repo, issuer: issuer, tracer: tracer}
}

// Recalculate derives the graph of the job named by grant and writes every
// operation whose stored predecessor set differs. Running it twice without an
// intervening mutation writes nothing the second time.
func (r *Recalculator) Recalculate(ctx context.Context, grant capability.Grant) (result Result, err error) {
	ctx, finish := r.tracer.StartSpan(ctx, "dependency.Recalculate", map[string]string{
		"job.id":     grant.JobID,
		"company.id": grant.CompanyID,
	})
	defer func() { finish(err) }()

	if err := r.issuer.Check(grant, grant.CompanyID, grant.JobID); err != nil {
		return Result{JobID: grant.JobID}, exception.NewPermissionError(moduleName, "graph recompute not authorized", err)
	}

	result, err = r.recalculate(ctx, grant)
	outcome, detail := model.AuditOutcomeSuccess, fmt.Sprintf("%d of %d operations changed", result.Changed, result.Operations)
	if err != nil {
		outcome, detail = model.AuditOutcomeFailure, err.Error()
	}
	if auditErr := r.issuer.Record(ctx, grant, model.AuditActionRecalculateDependencies, outcome, detail); auditErr != nil && err == nil {
		err = exception.NewRecalculationError(moduleName, "failed to record recalculation audit", auditErr)
	}
	return result, err
}

func (r *Recalculator) recalculate(ctx context.Context, grant capability.Grant) (Result, error) {
	result := Result{JobID: grant.JobID}

	if _, err := r.repo.FindJob(ctx, grant.CompanyID, grant.JobID); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return result, exception.NewNotFoundError(moduleName, fmt.Sprintf("job %s not found", grant.JobID), err)
		}
		return result, exception.NewRecalculationError(moduleName, "failed to load job", err)
	}
	ops, err := r.repo.ListOperationsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return result, exception.NewRecalculationError(moduleName, "failed to load operations", err)
	}
	methods, err := r.repo.ListMakeMethodsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return result, exception.NewRecalculationError(moduleName, "failed to load make methods", err)
	}
	materials, err := r.repo.ListMaterialsByJob(ctx, grant.CompanyID, grant.JobID)
	if err != nil {
		return result, exception.NewRecalculationError(moduleName, "failed to load materials", err)
	}

	graph := Compute(Snapshot{Operations: ops, Methods: methods, Materials: materials})
	for _, e := range graph.Dropped {
		logger.Warnf("Job %s: dropped dependency %s, predecessor is not earlier in job order.", grant.JobID, e)
	}
	result.Operations = len(ops)
	result.Dependencies = graph.DependsOn
	result.Dropped = graph.Dropped

	var errs *multierror.Error
	at := r.issuer.Now()
	for _, op := range ops {
		want := graph.DependsOn[op.ID]
		if equalIDs(op.DependsOn, want) {
			continue
		}
		if err := r.repo.UpdateOperationDependencies(ctx, op.ID, want, grant.ActingUserID, at); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("operation %s: %w", op.ID, err))
			continue
		}
		result.Changed++
	}
	if err := errs.ErrorOrNil(); err != nil {
		return result, exception.NewRecalculationError(moduleName, fmt.Sprintf("failed to write dependencies of job %s", grant.JobID), err)
	}

	logger.Debugf("Recalculated dependencies of job %s: %d operations, %d changed, %d dropped edges.",
		grant.JobID, result.Operations, result.Changed, len(result.Dropped))
	return result, nil
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
