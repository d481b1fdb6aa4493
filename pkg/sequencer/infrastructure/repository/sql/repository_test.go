package sql_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	dbconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/config"
	gormadapter "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm"
	_ "github.com/tigerroll/sequencer/pkg/sequencer/adapter/database/gorm/sqlite"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/application/usecase"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/capability"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/orderstore"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/requirement"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/migration"
	sqlrepo "github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/sql"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	repo *sqlrepo.SQLSequencingRepository
	conn *gormadapter.GormDBAdapter
}

// newHarness opens a migrated SQLite database limited to a single connection, so a
// read that bypassed an open transaction would block.
func newHarness(t *testing.T, migrate bool) *harness {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "sequencer.db"), Pool: dbconfig.PoolConfig{MaxOpenConns: 1}}
	db, err := gormadapter.Open(cfg, "SILENT")
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "sequencer")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resolver := gormadapter.NewSingleConnectionResolver(conn)
	if migrate {
		require.NoError(t, migration.NewMigrator(resolver, "sequencer").Up(context.Background()))
	}
	repo := sqlrepo.NewSQLSequencingRepository(resolver, gormadapter.NewGormTransactionManager(resolver, "sequencer"), "sequencer")
	return &harness{repo: repo, conn: conn.(*gormadapter.GormDBAdapter)}
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	audit := model.Audit{CreatedBy: "u0", CreatedAt: t0}
	require.NoError(t, h.repo.SaveJob(ctx, &model.Job{ID: "j1", JobID: "J-0001", CompanyID: "c1", Quantity: d("10"), Audit: audit}))
	require.NoError(t, h.repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m1", JobID: "j1", CompanyID: "c1", ParentMaterialID: "matB", Audit: audit}))
	require.NoError(t, h.repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m0", JobID: "j1", CompanyID: "c1", Audit: model.Audit{CreatedAt: t0.Add(time.Second)}}))
	require.NoError(t, h.repo.SaveMaterial(ctx, &model.JobMaterial{ID: "matB", JobMakeMethodID: "m0", JobOperationID: "B", CompanyID: "c1", MethodType: model.MethodTypeMake, QuantityPerParent: d("2"), Audit: audit}))
	require.NoError(t, h.repo.SaveMaterial(ctx, &model.JobMaterial{ID: "matS", JobMakeMethodID: "m1", CompanyID: "c1", QuantityPerParent: d("0.125"), Audit: audit}))

	ops := []*model.Operation{
		{ID: "A", JobMakeMethodID: "m0", Description: "Cut", WorkCenterID: "W1", SetupTime: d("1.5"), Priority: 3},
		{ID: "B", JobMakeMethodID: "m0", Description: "Weld", ScrapPercent: d("12.5"), DependsOn: []string{"A"}},
		{ID: "C", JobMakeMethodID: "m0", Description: "Paint", OperationOrder: model.OperationOrderWithPrevious},
	}
	for i, op := range ops {
		op.JobID, op.CompanyID, op.SortOrder, op.Audit = "j1", "c1", i+1, audit
		require.NoError(t, h.repo.InsertOperation(ctx, op))
	}
}

func TestSQLRepository_RoundTrip(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t)
	ctx := context.Background()

	job, err := h.repo.FindJob(ctx, "c1", "j1")
	require.NoError(t, err)
	assert.Equal(t, "J-0001", job.JobID)
	assert.True(t, d("10").Equal(job.Quantity))
	assert.True(t, t0.Equal(job.CreatedAt))
	assert.Nil(t, job.UpdatedAt)

	_, err = h.repo.FindJob(ctx, "c2", "j1")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)

	methods, err := h.repo.ListMakeMethodsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, "m0", methods[0].ID, "the root method comes first")
	assert.Equal(t, "matB", methods[1].ParentMaterialID)

	materials, err := h.repo.ListMaterialsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, materials, 2)
	byID := map[string]*model.JobMaterial{}
	for _, m := range materials {
		byID[m.ID] = m
	}
	assert.Equal(t, "B", byID["matB"].JobOperationID)
	assert.Empty(t, byID["matS"].JobOperationID)
	assert.Equal(t, model.MethodTypeBuy, byID["matS"].MethodType)
	assert.True(t, d("0.125").Equal(byID["matS"].QuantityPerParent))

	ops, err := h.repo.ListOperationsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{ops[0].ID, ops[1].ID, ops[2].ID})
	assert.Equal(t, "W1", ops[0].WorkCenterID)
	assert.Equal(t, model.OperationOrderAfterPrevious, ops[0].OperationOrder)
	assert.Equal(t, model.OperationOrderWithPrevious, ops[2].OperationOrder)
	assert.Nil(t, ops[0].DependsOn)
	assert.Equal(t, []string{"A"}, ops[1].DependsOn)
	assert.True(t, d("12.5").Equal(ops[1].ScrapPercent))

	require.NoError(t, h.repo.UpdateOperationDependencies(ctx, "C", []string{"A", "B"}, "u1", t0))
	require.NoError(t, h.repo.UpdateOperationDependencies(ctx, "B", nil, "u1", t0))
	c, err := h.repo.FindOperation(ctx, "c1", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, c.DependsOn)
	require.NotNil(t, c.UpdatedAt)
	assert.Equal(t, "u1", c.UpdatedBy)
	b, err := h.repo.FindOperation(ctx, "c1", "B")
	require.NoError(t, err)
	assert.Nil(t, b.DependsOn)

	a := ops[0]
	a.WorkCenterID, a.Priority, a.SetupTime = "", 0, decimal.Zero
	a.Touch("u2", t0)
	require.NoError(t, h.repo.UpdateOperation(ctx, a))
	a, err = h.repo.FindOperation(ctx, "c1", "A")
	require.NoError(t, err)
	assert.Empty(t, a.WorkCenterID, "zero values are written")
	assert.Equal(t, 0, a.Priority)
	assert.True(t, a.SetupTime.IsZero())
}

func TestSQLRepository_NotFound(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.repo.UpdateOperationSortOrder(ctx, "ghost", 1, "u1", t0), repository.ErrOperationNotFound)
	assert.ErrorIs(t, h.repo.UpdateStepSortOrder(ctx, "ghost", 1, "u1", t0), repository.ErrStepNotFound)
	assert.ErrorIs(t, h.repo.UpdateMakeMethodQuantity(ctx, "ghost", d("1"), "u1", t0), repository.ErrMakeMethodNotFound)
	assert.ErrorIs(t, h.repo.DeleteOperation(ctx, "c2", "A"), repository.ErrOperationNotFound)
	assert.ErrorIs(t, h.repo.DeleteParameter(ctx, "c1", "ghost"), repository.ErrAttachmentNotFound)
	assert.ErrorIs(t, h.repo.DeleteTool(ctx, "c1", "ghost"), repository.ErrAttachmentNotFound)
	_, err := h.repo.FindMaterial(ctx, "c1", "ghost")
	assert.True(t, repository.IsNotFound(err))
	assert.NoError(t, h.repo.DeleteRequirement(ctx, "ghost"))
}

func TestSQLRepository_InTransaction(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t)
	ctx := context.Background()
	abort := errors.New("abort")

	err := h.repo.InTransaction(ctx, func(ctx context.Context) error {
		if err := h.repo.UpdateOperationSortOrder(ctx, "A", 9, "u1", t0); err != nil {
			return err
		}
		a, err := h.repo.FindOperation(ctx, "c1", "A")
		if err != nil {
			return err
		}
		assert.Equal(t, 9, a.SortOrder, "reads inside the transaction see its writes")
		return h.repo.InTransaction(ctx, func(ctx context.Context) error { return abort })
	})
	assert.ErrorIs(t, err, abort)

	a, err := h.repo.FindOperation(ctx, "c1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, a.SortOrder, "the write was rolled back")
}

func TestSQLRepository_RequirementsAndDetach(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t)
	ctx := context.Background()

	req := func(op, in string) *model.OperationRequirement {
		return &model.OperationRequirement{OperationID: op, JobMakeMethodID: "m0", JobID: "j1", CompanyID: "c1", InputQuantity: d(in), CalculatedAt: t0}
	}
	require.NoError(t, h.repo.UpsertRequirements(ctx, []*model.OperationRequirement{req("A", "10"), req("B", "11.4286")}))
	require.NoError(t, h.repo.UpsertRequirements(ctx, []*model.OperationRequirement{req("B", "12")}))
	reqs, err := h.repo.ListRequirementsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.True(t, d("10").Equal(reqs[0].InputQuantity))
	assert.True(t, d("12").Equal(reqs[1].InputQuantity), "an existing row is replaced")

	require.NoError(t, h.repo.DeleteRequirement(ctx, "A"))
	reqs, err = h.repo.ListRequirementsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	assert.Len(t, reqs, 1)

	require.NoError(t, h.repo.SaveDispatchItem(ctx, &model.MaintenanceDispatchItem{ID: "di1", OperationID: "B", CompanyID: "c1", Quantity: d("1"), Audit: model.Audit{CreatedAt: t0}}))
	n, err := h.repo.DetachDispatchItems(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	var items []sqlrepo.DispatchItemEntity
	require.NoError(t, h.conn.ExecuteQuery(ctx, &items, map[string]interface{}{"id": "di1"}))
	require.Len(t, items, 1)
	assert.Nil(t, items[0].OperationID)

	n, err = h.repo.DetachMaterialsFromOperation(ctx, "B", "u1", t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	m, err := h.repo.FindMaterial(ctx, "c1", "matB")
	require.NoError(t, err)
	assert.Empty(t, m.JobOperationID)
	assert.Equal(t, "u1", m.UpdatedBy)
}

func TestSQLRepository_StepsAndAttachments(t *testing.T) {
	h := newHarness(t, true)
	h.seed(t)
	ctx := context.Background()

	for i, id := range []string{"s2", "s1"} {
		require.NoError(t, h.repo.InsertStep(ctx, &model.OperationStep{ID: id, OperationID: "A", CompanyID: "c1", Name: id, Type: model.StepTypeTask, SortOrder: i + 1, Audit: model.Audit{CreatedAt: t0}}))
	}
	require.NoError(t, h.repo.UpdateStepSortOrder(ctx, "s1", 1, "u1", t0))
	require.NoError(t, h.repo.UpdateStepSortOrder(ctx, "s2", 2, "u1", t0))
	steps, err := h.repo.ListStepsByOperation(ctx, "A")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "s1", steps[0].ID)

	// Equal sort orders keep insertion order, even when the ids sort the other way.
	require.NoError(t, h.repo.InsertStep(ctx, &model.OperationStep{ID: "zz", OperationID: "A", CompanyID: "c1", Name: "first", Type: model.StepTypeTask, SortOrder: 3, Audit: model.Audit{CreatedAt: t0}}))
	require.NoError(t, h.repo.InsertStep(ctx, &model.OperationStep{ID: "aa", OperationID: "A", CompanyID: "c1", Name: "second", Type: model.StepTypeTask, SortOrder: 3, Audit: model.Audit{CreatedAt: t0.Add(time.Second)}}))
	steps, err = h.repo.ListStepsByOperation(ctx, "A")
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Equal(t, []string{"zz", "aa"}, []string{steps[2].ID, steps[3].ID})

	require.NoError(t, h.repo.InsertParameter(ctx, &model.OperationParameter{ID: "p1", OperationID: "A", CompanyID: "c1", Key: "speed", Value: "1200", Audit: model.Audit{CreatedAt: t0}}))
	require.NoError(t, h.repo.InsertTool(ctx, &model.OperationTool{ID: "t1", OperationID: "A", CompanyID: "c1", ToolID: "drill", Quantity: d("2"), Audit: model.Audit{CreatedAt: t0}}))
	params, err := h.repo.ListParametersByOperation(ctx, "A")
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "speed", params[0].Key)
	tools, err := h.repo.ListToolsByOperation(ctx, "A")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.True(t, d("2").Equal(tools[0].Quantity))

	n, err := h.repo.DeleteStepsByOperation(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = h.repo.DeleteParametersByOperation(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, h.repo.DeleteTool(ctx, "c1", "t1"))
}

func TestSQLRepository_MissingSchema(t *testing.T) {
	h := newHarness(t, false)
	_, err := h.repo.FindJob(context.Background(), "c1", "j1")
	require.Error(t, err)
	assert.Equal(t, exception.KindInternal, exception.KindOf(err))
	assert.Contains(t, err.Error(), "migrate up")
}

func TestSQLRepository_DependencyWriteWithSQLMock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "mock")
	require.NoError(t, err)
	resolver := gormadapter.NewSingleConnectionResolver(conn)
	repo := sqlrepo.NewSQLSequencingRepository(resolver, gormadapter.NewGormTransactionManager(resolver, "mock"), "mock")

	mock.ExpectExec("UPDATE `job_operation` SET `depends_on`=\\?,`updated_at`=\\?,`updated_by`=\\? WHERE `id` = \\?").
		WithArgs(`["A","B"]`, sqlmock.AnyArg(), "u1", "C").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `job_operation` SET `depends_on`=\\?,`updated_at`=\\?,`updated_by`=\\? WHERE `id` = \\?").
		WithArgs(nil, sqlmock.AnyArg(), "u1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateOperationDependencies(context.Background(), "C", []string{"A", "B"}, "u1", t0))
	err = repo.UpdateOperationDependencies(context.Background(), "ghost", nil, "u1", t0)
	assert.ErrorIs(t, err, repository.ErrOperationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLRepository_ServesJobOperations drives the operation service end to end on SQLite.
func TestSQLRepository_ServesJobOperations(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	require.NoError(t, h.repo.SaveJob(ctx, &model.Job{ID: "j1", CompanyID: "c1", Quantity: d("10"), Audit: model.Audit{CreatedAt: t0}}))
	require.NoError(t, h.repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m0", JobID: "j1", CompanyID: "c1", Audit: model.Audit{CreatedAt: t0}}))

	issuer := capability.NewIssuer(time.Minute, h.repo)
	svc := usecase.NewDefaultJobOperationService(usecase.ServiceParams{
		Repository:   h.repo,
		OrderStore:   orderstore.NewStore(h.repo, h.repo),
		Recalculator: dependency.NewRecalculator(h.repo, issuer, nil),
		Propagator:   requirement.NewPropagator(h.repo, issuer, nil),
		Issuer:       issuer,
	})
	actor := model.Actor{CompanyID: "c1", UserID: "u1"}

	var ids []string
	for _, in := range []usecase.NewOperation{
		{Description: "Op1"},
		{Description: "Op2", WorkCenterID: "W", ScrapPercent: d("20")},
		{Description: "Op3", WorkCenterID: "W"},
	} {
		in.JobID, in.JobMakeMethodID = "j1", "m0"
		res, err := svc.InsertOperation(ctx, actor, in)
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}
	op1, op2, op3 := ids[0], ids[1], ids[2]

	_, err := svc.ReorderOperations(ctx, actor, "j1", []model.OperationOrderUpdate{{ID: op2, Order: 1}, {ID: op1, Order: 2}, {ID: op3, Order: 3}})
	require.NoError(t, err)

	views, err := svc.ListOperations(ctx, actor, "j1")
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, op2, views[0].Operation.ID)
	assert.Nil(t, views[0].Operation.DependsOn)
	assert.Equal(t, []string{op2}, views[1].Operation.DependsOn)
	assert.Equal(t, []string{op1}, views[2].Operation.DependsOn)
	require.NotNil(t, views[0].Requirement)
	assert.True(t, d("12.5").Equal(views[0].Requirement.InputQuantity))

	audits, err := h.repo.ListAuditsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	assert.NotEmpty(t, audits)
}
