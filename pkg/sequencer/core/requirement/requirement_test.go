package requirement_test

import (
	"context"
	"testing"
	"time"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/requirement"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/inmemory"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestCompute_BackwardPassAndAccumulation(t *testing.T) {
	plan, err := requirement.Compute(requirement.MethodSnapshot{
		Method:   &model.JobMakeMethod{ID: "m0"},
		Quantity: d("10"),
		Operations: []*model.Operation{
			{ID: "A", SetupTime: d("1"), LaborTime: d("0.1")},
			{ID: "B", ScrapPercent: d("20"), LaborTime: d("0.2"), MachineTime: d("0.2"), DependsOn: []string{"A"}},
			{ID: "C", SetupTime: d("0.5"), DependsOn: []string{"B"}},
		},
		Materials: []*model.JobMaterial{
			{ID: "matB", JobOperationID: "B", QuantityPerParent: d("2")},
			{ID: "matU", QuantityPerParent: d("1")},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Requirements, 3)
	a, b, c := plan.Requirements[0], plan.Requirements[1], plan.Requirements[2]

	assertDecimal(t, "10", c.OutputQuantity)
	assertDecimal(t, "10", c.InputQuantity)
	assertDecimal(t, "10", b.OutputQuantity)
	assertDecimal(t, "12.5", b.InputQuantity)
	assertDecimal(t, "12.5", a.OutputQuantity)
	assertDecimal(t, "12.5", a.InputQuantity)

	assertDecimal(t, "25", plan.MaterialEstimates["matB"])
	assertDecimal(t, "12.5", plan.MaterialEstimates["matU"], "unassigned material is consumed at the first operation")

	assertDecimal(t, "2.25", a.EstimatedHours)
	assertDecimal(t, "5", b.EstimatedHours)
	assertDecimal(t, "0.5", c.EstimatedHours)

	assertDecimal(t, "12.5", a.AccumulatedMaterialQuantity)
	assertDecimal(t, "37.5", b.AccumulatedMaterialQuantity)
	assertDecimal(t, "37.5", c.AccumulatedMaterialQuantity)
	assertDecimal(t, "7.25", b.AccumulatedHours)
	assertDecimal(t, "7.75", c.AccumulatedHours)
}

func TestCompute_ParallelBranchesCountedOnce(t *testing.T) {
	plan, err := requirement.Compute(requirement.MethodSnapshot{
		Method:   &model.JobMakeMethod{ID: "m0"},
		Quantity: d("10"),
		Operations: []*model.Operation{
			{ID: "P1"},
			{ID: "P2", ScrapPercent: d("50")},
			{ID: "J", DependsOn: []string{"P1", "P2"}},
			{ID: "K", DependsOn: []string{"J"}},
		},
		Materials: []*model.JobMaterial{
			{ID: "m1", JobOperationID: "P1", QuantityPerParent: d("1")},
			{ID: "m2", JobOperationID: "P2", QuantityPerParent: d("1")},
		},
	})
	require.NoError(t, err)
	byID := map[string]*model.OperationRequirement{}
	for _, r := range plan.Requirements {
		byID[r.OperationID] = r
	}
	assertDecimal(t, "20", byID["P2"].InputQuantity)
	assertDecimal(t, "10", byID["P1"].InputQuantity)
	assertDecimal(t, "30", byID["J"].AccumulatedMaterialQuantity)
	assertDecimal(t, "30", byID["K"].AccumulatedMaterialQuantity)
}

func TestCompute_OutputIsMaxOfSuccessorInputs(t *testing.T) {
	plan, err := requirement.Compute(requirement.MethodSnapshot{
		Method:   &model.JobMakeMethod{ID: "m0"},
		Quantity: d("10"),
		Operations: []*model.Operation{
			{ID: "X"},
			{ID: "Y", ScrapPercent: d("50"), DependsOn: []string{"X"}},
			{ID: "Z", DependsOn: []string{"X"}},
		},
	})
	require.NoError(t, err)
	assertDecimal(t, "20", plan.Requirements[0].OutputQuantity)
}

func TestCompute_RejectsCycle(t *testing.T) {
	_, err := requirement.Compute(requirement.MethodSnapshot{
		Method:   &model.JobMakeMethod{ID: "m0"},
		Quantity: d("1"),
		Operations: []*model.Operation{
			{ID: "A", DependsOn: []string{"B"}},
			{ID: "B", DependsOn: []string{"A"}},
		},
	})
	assert.Error(t, err)
}

func TestCompute_RoundsToScale(t *testing.T) {
	plan, err := requirement.Compute(requirement.MethodSnapshot{
		Method:     &model.JobMakeMethod{ID: "m0"},
		Quantity:   d("1"),
		Operations: []*model.Operation{{ID: "A", ScrapPercent: d("3")}},
	})
	require.NoError(t, err)
	assertDecimal(t, "1.0309", plan.Requirements[0].InputQuantity)
}

func seedJob(t *testing.T) (*inmemory.InMemorySequencingRepository, *capability.Issuer) {
	t.Helper()
	ctx := context.Background()
	repo := inmemory.NewInMemorySequencingRepository()
	require.NoError(t, repo.SaveJob(ctx, &model.Job{ID: "j1", CompanyID: "c1", Quantity: d("10")}))
	require.NoError(t, repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m0", JobID: "j1", CompanyID: "c1"}))
	require.NoError(t, repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m1", JobID: "j1", CompanyID: "c1", ParentMaterialID: "matB"}))
	require.NoError(t, repo.SaveMaterial(ctx, &model.JobMaterial{ID: "matB", JobMakeMethodID: "m0", JobOperationID: "B", CompanyID: "c1", MethodType: model.MethodTypeMake, QuantityPerParent: d("2")}))
	require.NoError(t, repo.SaveMaterial(ctx, &model.JobMaterial{ID: "matS", JobMakeMethodID: "m1", CompanyID: "c1", MethodType: model.MethodTypeBuy, QuantityPerParent: d("3")}))

	ops := []*model.Operation{
		{ID: "S1", JobMakeMethodID: "m1", ScrapPercent: d("50")},
		{ID: "A", JobMakeMethodID: "m0"},
		{ID: "B", JobMakeMethodID: "m0", ScrapPercent: d("20"), DependsOn: []string{"A", "S1"}},
		{ID: "C", JobMakeMethodID: "m0", DependsOn: []string{"B"}},
	}
	for i, op := range ops {
		op.JobID, op.CompanyID, op.SortOrder = "j1", "c1", i+1
		require.NoError(t, repo.InsertOperation(ctx, op))
	}
	return repo, capability.NewIssuer(time.Minute, repo)
}

func TestPropagate_RecursesIntoSubAssemblies(t *testing.T) {
	repo, issuer := seedJob(t)
	ctx := context.Background()
	g, err := issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)

	res, err := requirement.NewPropagator(repo, issuer, nil).Propagate(ctx, g, "m0")
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1"}, res.Methods)
	assert.Len(t, res.Requirements, 4)

	child, err := repo.FindMakeMethod(ctx, "c1", "m1")
	require.NoError(t, err)
	assertDecimal(t, "25", child.Quantity)

	matS, err := repo.FindMaterial(ctx, "c1", "matS")
	require.NoError(t, err)
	assertDecimal(t, "150", matS.EstimatedQuantity)

	reqs, err := repo.ListRequirementsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	byID := map[string]*model.OperationRequirement{}
	for _, r := range reqs {
		byID[r.OperationID] = r
	}
	assertDecimal(t, "50", byID["S1"].InputQuantity)
	assertDecimal(t, "25", byID["B"].MaterialQuantity)
	assert.Equal(t, "m1", byID["S1"].JobMakeMethodID)

	audits, err := repo.ListAuditsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, model.AuditActionPropagateRequirements, audits[0].Action)
}

func TestPropagateJob_IsIdempotent(t *testing.T) {
	repo, issuer := seedJob(t)
	ctx := context.Background()
	g, err := issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)
	p := requirement.NewPropagator(repo, issuer, nil)

	first, err := p.PropagateJob(ctx, g)
	require.NoError(t, err)
	second, err := p.PropagateJob(ctx, g)
	require.NoError(t, err)
	for id, r := range first.Requirements {
		assert.True(t, r.AccumulatedMaterialQuantity.Equal(second.Requirements[id].AccumulatedMaterialQuantity), id)
		assert.True(t, r.AccumulatedHours.Equal(second.Requirements[id].AccumulatedHours), id)
	}
}

func TestPropagate_Errors(t *testing.T) {
	repo, issuer := seedJob(t)
	ctx := context.Background()
	p := requirement.NewPropagator(repo, issuer, nil)

	g, err := issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "j1", "u1")
	require.NoError(t, err)
	_, err = p.Propagate(ctx, g, "unknown")
	assert.True(t, exception.IsNotFound(err))

	_, err = p.Propagate(ctx, capability.Grant{}, "m0")
	assert.True(t, exception.IsPermission(err))

	other, err := issuer.Issue(ctx, capability.ScopeRecomputeJobGraph, "c1", "missing", "u1")
	require.NoError(t, err)
	_, err = p.PropagateJob(ctx, other)
	assert.True(t, exception.IsNotFound(err))
}
