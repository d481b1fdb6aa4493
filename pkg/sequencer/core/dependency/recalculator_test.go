package dependency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/inmemory"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	repo   *inmemory.InMemorySequencingRepository
	issuer *capability.Issuer
	recalc *dependency.Recalculator
}

func newFixture(t *testing.T, ops ...*model.Operation) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := inmemory.NewInMemorySequencingRepository()
	require.NoError(t, repo.SaveJob(ctx, &model.Job{ID: "j1", CompanyID: "c1"}))
	require.NoError(t, repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m0", JobID: "j1", CompanyID: "c1"}))
	for i, o := range ops {
		o.JobID, o.CompanyID, o.SortOrder = "j1", "c1", i+1
		if o.JobMakeMethodID == "" {
			o.JobMakeMethodID = "m0"
		}
		require.NoError(t, repo.InsertOperation(ctx, o))
	}
	issuer := capability.NewIssuer(time.Minute, repo)
	return &fixture{repo: repo, issuer: issuer, recalc: dependency.NewRecalculator(repo, issuer, nil)}
}

func (f *fixture) grant(t *testing.T) capability.Grant {
	t.Helper()
	g, err := f.issuer.Issue(context.Background(), capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)
	return g
}

func (f *fixture) stored(t *testing.T) map[string][]string {
	t.Helper()
	ops, err := f.repo.ListOperationsByJob(context.Background(), "c1", "j1")
	require.NoError(t, err)
	out := map[string][]string{}
	for _, o := range ops {
		out[o.ID] = o.DependsOn
	}
	return out
}

func TestRecalculate_ExampleScenario(t *testing.T) {
	f := newFixture(t,
		&model.Operation{ID: "Op1"},
		&model.Operation{ID: "Op2", WorkCenterID: "W"},
		&model.Operation{ID: "Op3", WorkCenterID: "W"},
	)
	ctx := context.Background()

	res, err := f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Changed)
	if diff := cmp.Diff(map[string][]string{"Op1": nil, "Op2": {"Op1"}, "Op3": {"Op2"}}, f.stored(t), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored graph mismatch (-want +got):\n%s", diff)
	}

	now := time.Now()
	require.NoError(t, f.repo.UpdateOperationSortOrder(ctx, "Op2", 1, "u1", now))
	require.NoError(t, f.repo.UpdateOperationSortOrder(ctx, "Op1", 2, "u1", now))
	_, err = f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)
	if diff := cmp.Diff(map[string][]string{"Op2": nil, "Op1": {"Op2"}, "Op3": {"Op1"}}, f.stored(t), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored graph after reorder mismatch (-want +got):\n%s", diff)
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	f := newFixture(t,
		&model.Operation{ID: "A"},
		&model.Operation{ID: "B", OperationOrder: model.OperationOrderWithPrevious},
		&model.Operation{ID: "C"},
	)
	ctx := context.Background()

	first, err := f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)
	afterFirst := f.stored(t)

	second, err := f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	assert.Equal(t, afterFirst, f.stored(t))
	assert.Equal(t, first.Dependencies, second.Dependencies)

	audits, err := f.repo.ListAuditsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	for _, a := range audits {
		assert.Equal(t, model.AuditActionRecalculateDependencies, a.Action)
		assert.Equal(t, model.AuditOutcomeSuccess, a.Outcome)
		assert.Equal(t, "u1", a.ActingUserID)
	}
}

func TestRecalculate_DeletionConsistency(t *testing.T) {
	f := newFixture(t, &model.Operation{ID: "A"}, &model.Operation{ID: "X"}, &model.Operation{ID: "C"})
	ctx := context.Background()
	_, err := f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)

	require.NoError(t, f.repo.DeleteOperation(ctx, "c1", "X"))
	require.NoError(t, f.repo.UpdateOperationSortOrder(ctx, "C", 2, "u1", time.Now()))
	_, err = f.recalc.Recalculate(ctx, f.grant(t))
	require.NoError(t, err)

	graph := f.stored(t)
	assert.False(t, dependency.HasCycle(graph))
	for id, preds := range graph {
		assert.NotContains(t, preds, "X", "operation %s still depends on the deleted operation", id)
	}
	assert.Equal(t, []string{"A"}, graph["C"])
}

func TestRecalculate_RejectsInvalidGrant(t *testing.T) {
	f := newFixture(t, &model.Operation{ID: "A"})
	g := f.grant(t)
	g.Scope = "delete-job"
	_, err := f.recalc.Recalculate(context.Background(), g)
	assert.True(t, exception.IsPermission(err))
	assert.ErrorIs(t, err, capability.ErrCapabilityDenied)

	expired := f.grant(t)
	f.issuer.WithClock(func() time.Time { return time.Now().Add(time.Hour) })
	_, err = f.recalc.Recalculate(context.Background(), expired)
	assert.True(t, exception.IsPermission(err))
}

func TestRecalculate_UnknownJob(t *testing.T) {
	f := newFixture(t)
	g, err := f.issuer.Issue(context.Background(), capability.ScopeRecomputeJobGraph, "c1", "missing", "u1")
	require.NoError(t, err)
	_, err = f.recalc.Recalculate(context.Background(), g)
	assert.True(t, exception.IsNotFound(err))

	audits, _ := f.repo.ListAuditsByJob(context.Background(), "c1", "missing")
	require.Len(t, audits, 1)
	assert.Equal(t, model.AuditOutcomeFailure, audits[0].Outcome)
}

type failingDependencyWrites struct {
	*inmemory.InMemorySequencingRepository
}

func (failingDependencyWrites) UpdateOperationDependencies(ctx context.Context, id string, dependsOn []string, updatedBy string, at time.Time) error {
	return errors.New("read-only replica")
}

func TestRecalculate_WriteFailureIsRecalculationError(t *testing.T) {
	f := newFixture(t, &model.Operation{ID: "A"}, &model.Operation{ID: "B"})
	recalc := dependency.NewRecalculator(failingDependencyWrites{f.repo}, f.issuer, nil)

	res, err := recalc.Recalculate(context.Background(), f.grant(t))
	assert.True(t, exception.IsRecalculation(err))
	assert.Equal(t, 0, res.Changed)
	assert.Equal(t, []string{"A"}, res.Dependencies["B"])
}
