package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/metrics"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/ordering"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/orderstore"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/requirement"
	"github.com/tigerroll/sequencer/pkg/sequencer/listener"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

const moduleName = "usecase"

// ServiceParams holds the collaborators of DefaultJobOperationService.
type ServiceParams struct {
	fx.In

	Repository   repository.SequencingRepository
	OrderStore   *orderstore.Store
	Recalculator *dependency.Recalculator
	Propagator   *requirement.Propagator
	Issuer       *capability.Issuer
	Listener     listener.SequencingListener `optional:"true"`
	Tracer       metrics.Tracer              `optional:"true"`
	Exporter     ScheduleExporter            `optional:"true"`
}

// DefaultJobOperationService is the default implementation of JobOperationService.
type DefaultJobOperationService struct {
	repo     repository.SequencingRepository
	store    *orderstore.Store
	recalc   *dependency.Recalculator
	prop     *requirement.Propagator
	issuer   *capability.Issuer
	listener listener.SequencingListener
	tracer   metrics.Tracer
	exporter ScheduleExporter
	now      func() time.Time
}

// Verify that DefaultJobOperationService implements the JobOperationService interface.
var _ JobOperationService = (*DefaultJobOperationService)(nil)

// NewDefaultJobOperationService creates a new DefaultJobOperationService.
//
// Parameters:
//
//	p: The Fx parameters. Listener and Tracer default to no-ops; Exporter may be nil when exports are disabled.
//
// Returns:
//
//	A `*DefaultJobOperationService` ready to serve requests.
func NewDefaultJobOperationService(p ServiceParams) *DefaultJobOperationService {
	s := &DefaultJobOperationService{
		repo:     p.Repository,
		store:    p.OrderStore,
		recalc:   p.Recalculator,
		prop:     p.Propagator,
		issuer:   p.Issuer,
		listener: p.Listener,
		tracer:   p.Tracer,
		exporter: p.Exporter,
		now:      time.Now,
	}
	if s.listener == nil {
		s.listener = listener.NewComposite()
	}
	if s.tracer == nil {
		s.tracer = metrics.NewNoOpTracer()
	}
	return s
}

// track runs fn inside a span and reports the mutation to the listener.
func (s *DefaultJobOperationService) track(ctx context.Context, kind string, actor model.Actor, jobID, operationID string, fn func(ctx context.Context, ev *listener.MutationEvent) error) error {
	ev := listener.MutationEvent{Kind: kind, CompanyID: actor.CompanyID, UserID: actor.UserID, JobID: jobID, OperationID: operationID}
	ctx, finish := s.tracer.StartSpan(ctx, "usecase."+kind, map[string]string{
		"company.id":   actor.CompanyID,
		"job.id":       jobID,
		"operation.id": operationID,
	})
	start := time.Now()

	err := validateActor(actor)
	if err == nil {
		err = fn(ctx, &ev)
	}

	ev.Duration = time.Since(start)
	ev.Err = err
	finish(err)
	s.listener.OnMutation(ctx, ev)
	return err
}

func validateActor(actor model.Actor) error {
	if actor.CompanyID == "" || actor.UserID == "" {
		return exception.NewValidationError(moduleName, "company and user are required", nil)
	}
	return nil
}

// recompute recalculates the job's dependency graph and then, when propagate is
// set, the requirements of methodID (or of every method when methodID is empty).
// Any failure marks res as stale.
func (s *DefaultJobOperationService) recompute(ctx context.Context, actor model.Actor, kind, jobID string, propagate bool, methodID string, res *Result) error {
	grant, err := s.issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, actor.CompanyID, jobID, actor.UserID)
	if err != nil {
		res.Stale = true
		return exception.NewPermissionError(moduleName, "failed to obtain graph recompute grant", err)
	}

	start := time.Now()
	deps, err := s.recalc.Recalculate(ctx, grant)
	s.listener.OnRecalculated(ctx, listener.RecalculationEvent{
		JobID:      jobID,
		Operations: deps.Operations,
		Changed:    deps.Changed,
		Dropped:    len(deps.Dropped),
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		res.Stale = true
		s.listener.OnFailure(ctx, listener.FailureEvent{Kind: kind, JobID: jobID, Stage: "recalculate", Err: err})
		return err
	}
	res.Dependencies = &deps
	if !propagate {
		return nil
	}

	start = time.Now()
	var reqs requirement.Result
	if methodID == "" {
		reqs, err = s.prop.PropagateJob(ctx, grant)
	} else {
		reqs, err = s.prop.Propagate(ctx, grant, methodID)
	}
	s.listener.OnPropagated(ctx, listener.PropagationEvent{
		JobID:      jobID,
		Methods:    reqs.Methods,
		Operations: len(reqs.Requirements),
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		res.Stale = true
		s.listener.OnFailure(ctx, listener.FailureEvent{Kind: kind, JobID: jobID, Stage: "propagate", Err: err})
		return err
	}
	res.Requirements = &reqs
	return nil
}

// findJob loads a job, mapping a missing job onto a not-found error.
func (s *DefaultJobOperationService) findJob(ctx context.Context, companyID, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, exception.NewValidationError(moduleName, "job id is required", nil)
	}
	job, err := s.repo.FindJob(ctx, companyID, jobID)
	if err != nil {
		return nil, mapRepositoryError(fmt.Sprintf("failed to load job %s", jobID), err)
	}
	return job, nil
}

func (s *DefaultJobOperationService) findOperation(ctx context.Context, companyID, operationID string) (*model.Operation, error) {
	if operationID == "" {
		return nil, exception.NewValidationError(moduleName, "operation id is required", nil)
	}
	op, err := s.repo.FindOperation(ctx, companyID, operationID)
	if err != nil {
		return nil, mapRepositoryError(fmt.Sprintf("failed to load operation %s", operationID), err)
	}
	return op, nil
}

func mapRepositoryError(msg string, err error) error {
	if exception.IsSequencerError(err) {
		return err
	}
	if repository.IsNotFound(err) {
		return exception.NewNotFoundError(moduleName, msg, err)
	}
	return exception.NewInternalError(moduleName, msg, err)
}

// renumber writes the positions of ops whose assignment in list differs from the stored one.
func (s *DefaultJobOperationService) renumber(ctx context.Context, ops []*model.Operation, list *ordering.List, skip, updatedBy string, at time.Time) error {
	assigned := list.Assignments()
	for _, op := range ops {
		if op.ID == skip {
			continue
		}
		pos, ok := assigned[op.ID]
		if !ok || pos == op.SortOrder {
			continue
		}
		if err := s.repo.UpdateOperationSortOrder(ctx, op.ID, pos, updatedBy, at); err != nil {
			return fmt.Errorf("renumber operation %s: %w", op.ID, err)
		}
	}
	return nil
}

func operationList(ops []*model.Operation) (*ordering.List, error) {
	entries := make([]ordering.Entry, len(ops))
	for i, op := range ops {
		entries[i] = ordering.Entry{ID: op.ID, Position: float64(op.SortOrder)}
	}
	return ordering.FromEntries(entries)
}

// renumberSteps closes gaps left in the stored step order.
func (s *DefaultJobOperationService) renumberSteps(ctx context.Context, steps []*model.OperationStep, list *ordering.List, updatedBy string, at time.Time) error {
	assigned := list.Assignments()
	for _, step := range steps {
		if pos, ok := assigned[step.ID]; ok && pos != step.SortOrder {
			if err := s.repo.UpdateStepSortOrder(ctx, step.ID, pos, updatedBy, at); err != nil {
				return fmt.Errorf("renumber step %s: %w", step.ID, err)
			}
		}
	}
	return nil
}

func stepList(steps []*model.OperationStep) (*ordering.List, error) {
	entries := make([]ordering.Entry, len(steps))
	for i, step := range steps {
		entries[i] = ordering.Entry{ID: step.ID, Position: float64(step.SortOrder)}
	}
	return ordering.FromEntries(entries)
}

func (in NewOperation) validate() error {
	switch {
	case in.JobID == "":
		return exception.NewValidationError(moduleName, "job id is required", nil)
	case in.JobMakeMethodID == "":
		return exception.NewValidationError(moduleName, "make method id is required", nil)
	case in.Description == "":
		return exception.NewValidationError(moduleName, "description is required", nil)
	case in.Position < 0:
		return exception.NewValidationError(moduleName, "position must not be negative", nil)
	}
	if in.OperationOrder != "" && !in.OperationOrder.Valid() {
		return exception.NewValidationError(moduleName, fmt.Sprintf("unknown operation order %q", in.OperationOrder), nil)
	}
	if err := (model.SetTiming{SetupTime: in.SetupTime, LaborTime: in.LaborTime, MachineTime: in.MachineTime}).Validate(); err != nil {
		return exception.NewValidationError(moduleName, err.Error(), err)
	}
	if err := (model.SetScrapPercent{ScrapPercent: in.ScrapPercent}).Validate(); err != nil {
		return exception.NewValidationError(moduleName, err.Error(), err)
	}
	if in.Priority < 0 {
		return exception.NewValidationError(moduleName, "priority must not be negative", nil)
	}
	return nil
}

// InsertOperation creates an operation, recalculates the job and propagates the
// requirements of the operation's make method.
func (s *DefaultJobOperationService) InsertOperation(ctx context.Context, actor model.Actor, in NewOperation) (res Result, err error) {
	err = s.track(ctx, KindInsertOperation, actor, in.JobID, "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if err := in.validate(); err != nil {
			return err
		}
		order := in.OperationOrder
		if order == "" {
			order = model.OperationOrderAfterPrevious
		}
		op := &model.Operation{
			ID:              uuid.NewString(),
			JobID:           in.JobID,
			JobMakeMethodID: in.JobMakeMethodID,
			CompanyID:       actor.CompanyID,
			Description:     in.Description,
			WorkCenterID:    in.WorkCenterID,
			OperationOrder:  order,
			SetupTime:       in.SetupTime,
			LaborTime:       in.LaborTime,
			MachineTime:     in.MachineTime,
			ScrapPercent:    in.ScrapPercent,
			Priority:        in.Priority,
		}
		ev.OperationID = op.ID

		err := s.repo.InTransaction(ctx, func(ctx context.Context) error {
			if _, err := s.findJob(ctx, actor.CompanyID, in.JobID); err != nil {
				return err
			}
			method, err := s.repo.FindMakeMethod(ctx, actor.CompanyID, in.JobMakeMethodID)
			if err != nil {
				return mapRepositoryError(fmt.Sprintf("failed to load make method %s", in.JobMakeMethodID), err)
			}
			if method.JobID != in.JobID {
				return exception.NewNotFoundError(moduleName, fmt.Sprintf("make method %s does not belong to job %s", method.ID, in.JobID), repository.ErrMakeMethodNotFound)
			}
			ops, err := s.repo.ListOperationsByJob(ctx, actor.CompanyID, in.JobID)
			if err != nil {
				return exception.NewInternalError(moduleName, "failed to load operations", err)
			}
			list, err := operationList(ops)
			if err != nil {
				return exception.NewInternalError(moduleName, "stored operation order is corrupt", err)
			}
			at := in.Position
			if at == 0 {
				at = list.Len() + 1
			}
			if err := list.Insert(op.ID, at); err != nil {
				return exception.NewInternalError(moduleName, "failed to place operation", err)
			}
			op.SortOrder, _ = list.Position(op.ID)

			now := s.now()
			op.CreatedBy, op.CreatedAt = actor.UserID, now
			if err := s.repo.InsertOperation(ctx, op); err != nil {
				return exception.NewInternalError(moduleName, "failed to insert operation", err)
			}
			if err := s.renumber(ctx, ops, list, op.ID, actor.UserID, now); err != nil {
				return exception.NewInternalError(moduleName, "failed to renumber operations", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		res.ID = op.ID
		logger.Infof("Inserted operation %s into job %s at position %d.", op.ID, in.JobID, op.SortOrder)
		return s.recompute(ctx, actor, KindInsertOperation, in.JobID, true, in.JobMakeMethodID, &res)
	})
	return res, err
}

// DeleteOperation removes an operation with everything attached to it, closes the
// gap in the job order, then recalculates the job and re-propagates the method the
// operation belonged to.
func (s *DefaultJobOperationService) DeleteOperation(ctx context.Context, actor model.Actor, jobID, operationID string) (res Result, err error) {
	err = s.track(ctx, KindDeleteOperation, actor, jobID, operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if jobID == "" || operationID == "" {
			return exception.NewValidationError(moduleName, "job id and operation id are required", nil)
		}
		var methodID string
		err := s.repo.InTransaction(ctx, func(ctx context.Context) error {
			op, err := s.findOperation(ctx, actor.CompanyID, operationID)
			if err != nil {
				return err
			}
			if op.JobID != jobID {
				return exception.NewNotFoundError(moduleName, fmt.Sprintf("operation %s does not belong to job %s", operationID, jobID), repository.ErrOperationNotFound)
			}
			methodID = op.JobMakeMethodID
			now := s.now()

			if _, err := s.repo.DeleteStepsByOperation(ctx, op.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to delete steps", err)
			}
			if _, err := s.repo.DeleteParametersByOperation(ctx, op.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to delete parameters", err)
			}
			if _, err := s.repo.DeleteToolsByOperation(ctx, op.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to delete tools", err)
			}
			if err := s.repo.DeleteRequirement(ctx, op.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to delete requirement", err)
			}
			if _, err := s.repo.DetachMaterialsFromOperation(ctx, op.ID, actor.UserID, now); err != nil {
				return exception.NewInternalError(moduleName, "failed to detach materials", err)
			}
			if _, err := s.repo.DetachDispatchItems(ctx, op.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to detach maintenance dispatch items", err)
			}
			if err := s.repo.DeleteOperation(ctx, actor.CompanyID, op.ID); err != nil {
				return mapRepositoryError(fmt.Sprintf("failed to delete operation %s", op.ID), err)
			}

			rest, err := s.repo.ListOperationsByJob(ctx, actor.CompanyID, jobID)
			if err != nil {
				return exception.NewInternalError(moduleName, "failed to load operations", err)
			}
			list, err := operationList(rest)
			if err != nil {
				return exception.NewInternalError(moduleName, "stored operation order is corrupt", err)
			}
			if err := s.renumber(ctx, rest, list, "", actor.UserID, now); err != nil {
				return exception.NewInternalError(moduleName, "failed to renumber operations", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Infof("Deleted operation %s from job %s.", operationID, jobID)
		return s.recompute(ctx, actor, KindDeleteOperation, jobID, true, methodID, &res)
	})
	return res, err
}

// ReorderOperations applies an order batch to the job. Items are applied
// independently; when any position changed the job is recalculated and every
// make method re-propagated.
func (s *DefaultJobOperationService) ReorderOperations(ctx context.Context, actor model.Actor, jobID string, updates []model.OperationOrderUpdate) (res Result, err error) {
	err = s.track(ctx, KindReorderOperations, actor, jobID, "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if len(updates) == 0 {
			return exception.NewValidationError(moduleName, "no order updates given", nil)
		}
		if _, err := s.findJob(ctx, actor.CompanyID, jobID); err != nil {
			return err
		}
		stamped := make([]model.OperationOrderUpdate, len(updates))
		for i, u := range updates {
			if u.UpdatedBy == "" {
				u.UpdatedBy = actor.UserID
			}
			stamped[i] = u
		}
		batch, err := s.store.ApplyOperationOrder(ctx, actor.CompanyID, jobID, stamped)
		if err != nil {
			return err
		}
		res.Batch = &batch
		ev.Applied, ev.Failed = batch.AppliedCount(), batch.FailedCount()

		var recomputeErr error
		if moved(batch) {
			recomputeErr = s.recompute(ctx, actor, KindReorderOperations, jobID, true, "", &res)
		}
		if batchErr := batch.Err(); batchErr != nil {
			return exception.NewPartialBatchError(moduleName,
				fmt.Sprintf("%d of %d operation order updates failed", ev.Failed, len(updates)), batchErr)
		}
		return recomputeErr
	})
	return res, err
}

// moved reports whether a batch persisted any position.
func moved(batch orderstore.BatchResult) bool {
	if batch.AppliedCount() > 0 {
		return true
	}
	for _, r := range batch.Renumbered {
		if r.Applied() {
			return true
		}
	}
	return false
}

// ReorderSteps applies an order batch to the steps of an operation. Steps do not
// take part in the dependency graph, so nothing is recomputed.
func (s *DefaultJobOperationService) ReorderSteps(ctx context.Context, actor model.Actor, operationID string, updates []model.StepOrderUpdate) (res Result, err error) {
	err = s.track(ctx, KindReorderSteps, actor, "", operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if len(updates) == 0 {
			return exception.NewValidationError(moduleName, "no order updates given", nil)
		}
		op, err := s.findOperation(ctx, actor.CompanyID, operationID)
		if err != nil {
			return err
		}
		ev.JobID = op.JobID
		stamped := make([]model.StepOrderUpdate, len(updates))
		for i, u := range updates {
			if u.UpdatedBy == "" {
				u.UpdatedBy = actor.UserID
			}
			stamped[i] = u
		}
		batch, err := s.store.ApplyStepOrder(ctx, operationID, stamped)
		if err != nil {
			return err
		}
		res.Batch = &batch
		ev.Applied, ev.Failed = batch.AppliedCount(), batch.FailedCount()
		if batchErr := batch.Err(); batchErr != nil {
			return exception.NewPartialBatchError(moduleName,
				fmt.Sprintf("%d of %d step order updates failed", ev.Failed, len(updates)), batchErr)
		}
		return nil
	})
	return res, err
}

// UpdateOperation applies a single-field command. Commands that change the graph
// trigger a recalculation; commands that change the graph or the requirement
// inputs re-propagate the operation's make method.
func (s *DefaultJobOperationService) UpdateOperation(ctx context.Context, actor model.Actor, operationID string, cmd model.OperationCommand) (res Result, err error) {
	err = s.track(ctx, KindUpdateOperation, actor, "", operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if cmd == nil {
			return exception.NewValidationError(moduleName, "no update given", nil)
		}
		if err := cmd.Validate(); err != nil {
			return exception.NewValidationError(moduleName, fmt.Sprintf("%s: %v", cmd.Name(), err), err)
		}
		op, err := s.findOperation(ctx, actor.CompanyID, operationID)
		if err != nil {
			return err
		}
		ev.JobID = op.JobID
		cmd.Apply(op)
		op.Touch(actor.UserID, s.now())
		if err := s.repo.UpdateOperation(ctx, op); err != nil {
			return mapRepositoryError(fmt.Sprintf("failed to update operation %s", operationID), err)
		}
		logger.Debugf("Updated %s of operation %s.", cmd.Name(), operationID)

		switch {
		case cmd.AffectsGraph():
			return s.recompute(ctx, actor, KindUpdateOperation, op.JobID, true, op.JobMakeMethodID, &res)
		case cmd.AffectsRequirements():
			return s.propagateOnly(ctx, actor, op.JobID, op.JobMakeMethodID, &res)
		}
		return nil
	})
	return res, err
}

// propagateOnly re-propagates a method without recalculating the unchanged graph.
func (s *DefaultJobOperationService) propagateOnly(ctx context.Context, actor model.Actor, jobID, methodID string, res *Result) error {
	grant, err := s.issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, actor.CompanyID, jobID, actor.UserID)
	if err != nil {
		res.Stale = true
		return exception.NewPermissionError(moduleName, "failed to obtain graph recompute grant", err)
	}
	start := time.Now()
	reqs, err := s.prop.Propagate(ctx, grant, methodID)
	s.listener.OnPropagated(ctx, listener.PropagationEvent{
		JobID:      jobID,
		Methods:    reqs.Methods,
		Operations: len(reqs.Requirements),
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		res.Stale = true
		s.listener.OnFailure(ctx, listener.FailureEvent{Kind: KindUpdateOperation, JobID: jobID, Stage: "propagate", Err: err})
		return err
	}
	res.Requirements = &reqs
	return nil
}

// InsertStep appends a step to an operation.
func (s *DefaultJobOperationService) InsertStep(ctx context.Context, actor model.Actor, operationID string, in NewStep) (res Result, err error) {
	err = s.track(ctx, KindInsertStep, actor, "", operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if in.Name == "" {
			return exception.NewValidationError(moduleName, "step name is required", nil)
		}
		stepType := in.Type
		if stepType == "" {
			stepType = model.StepTypeTask
		}
		op, err := s.findOperation(ctx, actor.CompanyID, operationID)
		if err != nil {
			return err
		}
		ev.JobID = op.JobID
		return s.repo.InTransaction(ctx, func(ctx context.Context) error {
			steps, err := s.repo.ListStepsByOperation(ctx, operationID)
			if err != nil {
				return exception.NewInternalError(moduleName, "failed to load steps", err)
			}
			list, err := stepList(steps)
			if err != nil {
				return exception.NewInternalError(moduleName, "stored step order is corrupt", err)
			}
			now := s.now()
			step := &model.OperationStep{
				ID:          uuid.NewString(),
				OperationID: operationID,
				CompanyID:   actor.CompanyID,
				Name:        in.Name,
				Description: in.Description,
				Type:        stepType,
				Audit:       model.Audit{CreatedBy: actor.UserID, CreatedAt: now},
			}
			if err := list.Append(step.ID); err != nil {
				return exception.NewInternalError(moduleName, "failed to place step", err)
			}
			step.SortOrder, _ = list.Position(step.ID)
			if err := s.repo.InsertStep(ctx, step); err != nil {
				return exception.NewInternalError(moduleName, "failed to insert step", err)
			}
			if err := s.renumberSteps(ctx, steps, list, actor.UserID, now); err != nil {
				return exception.NewInternalError(moduleName, "failed to renumber steps", err)
			}
			res.ID = step.ID
			return nil
		})
	})
	return res, err
}

// InsertParameter attaches a key/value parameter to an operation.
func (s *DefaultJobOperationService) InsertParameter(ctx context.Context, actor model.Actor, operationID, key, value string) (res Result, err error) {
	err = s.track(ctx, KindInsertParameter, actor, "", operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if key == "" {
			return exception.NewValidationError(moduleName, "parameter key is required", nil)
		}
		op, err := s.findOperation(ctx, actor.CompanyID, operationID)
		if err != nil {
			return err
		}
		ev.JobID = op.JobID
		p := &model.OperationParameter{
			ID:          uuid.NewString(),
			OperationID: operationID,
			CompanyID:   actor.CompanyID,
			Key:         key,
			Value:       value,
			Audit:       model.Audit{CreatedBy: actor.UserID, CreatedAt: s.now()},
		}
		if err := s.repo.InsertParameter(ctx, p); err != nil {
			return exception.NewInternalError(moduleName, "failed to insert parameter", err)
		}
		res.ID = p.ID
		return nil
	})
	return res, err
}

// DeleteParameter removes an operation parameter.
func (s *DefaultJobOperationService) DeleteParameter(ctx context.Context, actor model.Actor, id string) error {
	return s.track(ctx, KindDeleteParameter, actor, "", "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if id == "" {
			return exception.NewValidationError(moduleName, "parameter id is required", nil)
		}
		if err := s.repo.DeleteParameter(ctx, actor.CompanyID, id); err != nil {
			return mapRepositoryError(fmt.Sprintf("failed to delete parameter %s", id), err)
		}
		return nil
	})
}

// InsertTool attaches a tool to an operation. A zero quantity means one.
func (s *DefaultJobOperationService) InsertTool(ctx context.Context, actor model.Actor, operationID, toolID string, quantity decimal.Decimal) (res Result, err error) {
	err = s.track(ctx, KindInsertTool, actor, "", operationID, func(ctx context.Context, ev *listener.MutationEvent) error {
		if toolID == "" {
			return exception.NewValidationError(moduleName, "tool id is required", nil)
		}
		if quantity.IsNegative() {
			return exception.NewValidationError(moduleName, "tool quantity must not be negative", nil)
		}
		if quantity.IsZero() {
			quantity = decimal.NewFromInt(1)
		}
		op, err := s.findOperation(ctx, actor.CompanyID, operationID)
		if err != nil {
			return err
		}
		ev.JobID = op.JobID
		t := &model.OperationTool{
			ID:          uuid.NewString(),
			OperationID: operationID,
			CompanyID:   actor.CompanyID,
			ToolID:      toolID,
			Quantity:    quantity,
			Audit:       model.Audit{CreatedBy: actor.UserID, CreatedAt: s.now()},
		}
		if err := s.repo.InsertTool(ctx, t); err != nil {
			return exception.NewInternalError(moduleName, "failed to insert tool", err)
		}
		res.ID = t.ID
		return nil
	})
	return res, err
}

// DeleteTool removes an operation tool.
func (s *DefaultJobOperationService) DeleteTool(ctx context.Context, actor model.Actor, id string) error {
	return s.track(ctx, KindDeleteTool, actor, "", "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if id == "" {
			return exception.NewValidationError(moduleName, "tool id is required", nil)
		}
		if err := s.repo.DeleteTool(ctx, actor.CompanyID, id); err != nil {
			return mapRepositoryError(fmt.Sprintf("failed to delete tool %s", id), err)
		}
		return nil
	})
}

// RecalculateJob recalculates the job's graph and re-propagates every make method.
// It repairs a job left stale by an earlier failure.
func (s *DefaultJobOperationService) RecalculateJob(ctx context.Context, actor model.Actor, jobID string) (res Result, err error) {
	err = s.track(ctx, KindRecalculateJob, actor, jobID, "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if _, err := s.findJob(ctx, actor.CompanyID, jobID); err != nil {
			return err
		}
		return s.recompute(ctx, actor, KindRecalculateJob, jobID, true, "", &res)
	})
	return res, err
}

func (s *DefaultJobOperationService) GetOperation(ctx context.Context, actor model.Actor, operationID string) (*model.Operation, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	return s.findOperation(ctx, actor.CompanyID, operationID)
}

// ListOperations returns the job's operations in order with their requirement rows.
func (s *DefaultJobOperationService) ListOperations(ctx context.Context, actor model.Actor, jobID string) ([]OperationView, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.findJob(ctx, actor.CompanyID, jobID); err != nil {
		return nil, err
	}
	ops, err := s.repo.ListOperationsByJob(ctx, actor.CompanyID, jobID)
	if err != nil {
		return nil, exception.NewInternalError(moduleName, "failed to load operations", err)
	}
	reqs, err := s.repo.ListRequirementsByJob(ctx, actor.CompanyID, jobID)
	if err != nil {
		return nil, exception.NewInternalError(moduleName, "failed to load requirements", err)
	}
	byOp := make(map[string]*model.OperationRequirement, len(reqs))
	for _, r := range reqs {
		byOp[r.OperationID] = r
	}
	views := make([]OperationView, len(ops))
	for i, op := range ops {
		views[i] = OperationView{Operation: op, Requirement: byOp[op.ID]}
	}
	return views, nil
}

// ExportSchedule writes the job's schedule through the configured exporter.
func (s *DefaultJobOperationService) ExportSchedule(ctx context.Context, actor model.Actor, jobID string) (object string, err error) {
	err = s.track(ctx, KindExportSchedule, actor, jobID, "", func(ctx context.Context, ev *listener.MutationEvent) error {
		if s.exporter == nil {
			return exception.NewInternalError(moduleName, "schedule export is not configured", nil)
		}
		views, err := s.ListOperations(ctx, actor, jobID)
		if err != nil {
			return err
		}
		rows := make([]model.ScheduleRow, len(views))
		for i, v := range views {
			rows[i] = scheduleRow(v)
		}
		object, err = s.exporter.Export(ctx, actor.CompanyID, jobID, rows)
		if err != nil {
			var se *exception.SequencerError
			if errors.As(err, &se) {
				return err
			}
			return exception.NewInternalError(moduleName, "failed to export schedule", err)
		}
		logger.Infof("Exported schedule of job %s (%d operations) to %s.", jobID, len(rows), object)
		return nil
	})
	return object, err
}

func scheduleRow(v OperationView) model.ScheduleRow {
	op := v.Operation
	row := model.ScheduleRow{
		CompanyID:       op.CompanyID,
		JobID:           op.JobID,
		OperationID:     op.ID,
		JobMakeMethodID: op.JobMakeMethodID,
		Description:     op.Description,
		SortOrder:       op.SortOrder,
		WorkCenterID:    op.WorkCenterID,
		OperationOrder:  op.OperationOrder,
		Priority:        op.Priority,
		DependsOn:       op.DependsOn,
	}
	if r := v.Requirement; r != nil {
		row.InputQuantity = r.InputQuantity
		row.OutputQuantity = r.OutputQuantity
		row.MaterialQuantity = r.MaterialQuantity
		row.AccumulatedMaterialQuantity = r.AccumulatedMaterialQuantity
		row.EstimatedHours = r.EstimatedHours
		row.AccumulatedHours = r.AccumulatedHours
		at := r.CalculatedAt
		row.CalculatedAt = &at
	}
	return row
}
