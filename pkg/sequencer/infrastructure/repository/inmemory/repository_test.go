package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/repository"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOperationsByJob_Ordering(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, op := range []*model.Operation{
		{ID: "c", JobID: "j1", CompanyID: "c1", SortOrder: 2, Audit: model.Audit{CreatedAt: base}},
		{ID: "b", JobID: "j1", CompanyID: "c1", SortOrder: 1, Audit: model.Audit{CreatedAt: base.Add(time.Second)}},
		{ID: "a", JobID: "j1", CompanyID: "c1", SortOrder: 1, Audit: model.Audit{CreatedAt: base.Add(time.Second)}},
		{ID: "z", JobID: "j1", CompanyID: "other", SortOrder: 1},
	} {
		require.NoError(t, repo.InsertOperation(ctx, op))
	}

	ops, err := repo.ListOperationsByJob(ctx, "c1", "j1")
	require.NoError(t, err)
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	_, err = repo.FindOperation(ctx, "c1", "z")
	assert.ErrorIs(t, err, repository.ErrOperationNotFound)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	require.NoError(t, repo.InsertOperation(ctx, &model.Operation{ID: "o1", CompanyID: "c1", DependsOn: []string{"x"}}))

	op, err := repo.FindOperation(ctx, "c1", "o1")
	require.NoError(t, err)
	op.DependsOn[0] = "mutated"
	op.Description = "mutated"

	again, err := repo.FindOperation(ctx, "c1", "o1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.DependsOn)
	assert.Empty(t, again.Description)
}

func TestInTransaction_RestoresOnError(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	require.NoError(t, repo.InsertOperation(ctx, &model.Operation{ID: "o1", CompanyID: "c1", JobID: "j1"}))
	require.NoError(t, repo.InsertStep(ctx, &model.OperationStep{ID: "s1", OperationID: "o1"}))

	boom := errors.New("boom")
	err := repo.InTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.DeleteStepsByOperation(ctx, "o1"); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return repo.InTransaction(ctx, func(ctx context.Context) error {
			if err := repo.DeleteOperation(ctx, "c1", "o1"); err != nil {
				return err
			}
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindOperation(ctx, "c1", "o1")
	assert.NoError(t, err)
	steps, err := repo.ListStepsByOperation(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, steps, 1)

	require.NoError(t, repo.InTransaction(ctx, func(ctx context.Context) error {
		return repo.DeleteOperation(ctx, "c1", "o1")
	}))
	_, err = repo.FindOperation(ctx, "c1", "o1")
	assert.ErrorIs(t, err, repository.ErrOperationNotFound)
}

func TestInTransaction_RollbackKeepsConcurrentWrites(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	require.NoError(t, repo.InsertOperation(ctx, &model.Operation{ID: "o1", CompanyID: "c1", JobID: "j1", SortOrder: 1}))
	require.NoError(t, repo.InsertOperation(ctx, &model.Operation{ID: "o2", CompanyID: "c1", JobID: "j1", SortOrder: 2}))

	inTx := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- repo.InTransaction(ctx, func(ctx context.Context) error {
			if err := repo.UpdateOperationSortOrder(ctx, "o2", 5, "u1", time.Now()); err != nil {
				return err
			}
			close(inTx)
			<-release
			return errors.New("boom")
		})
	}()
	<-inTx

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- repo.UpdateOperationSortOrder(ctx, "o1", 7, "u2", time.Now())
	}()
	select {
	case err := <-writeDone:
		t.Fatalf("write outside the transaction finished while it was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	assert.Error(t, <-txDone)
	require.NoError(t, <-writeDone)

	o1, err := repo.FindOperation(ctx, "c1", "o1")
	require.NoError(t, err)
	assert.Equal(t, 7, o1.SortOrder)
	o2, err := repo.FindOperation(ctx, "c1", "o2")
	require.NoError(t, err)
	assert.Equal(t, 2, o2.SortOrder)
}

func TestListStepsByOperation_TiesKeepInsertionOrder(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.InsertStep(ctx, &model.OperationStep{ID: "zz", OperationID: "o1", SortOrder: 1, Audit: model.Audit{CreatedAt: base}}))
	require.NoError(t, repo.InsertStep(ctx, &model.OperationStep{ID: "aa", OperationID: "o1", SortOrder: 1, Audit: model.Audit{CreatedAt: base.Add(time.Second)}}))

	steps, err := repo.ListStepsByOperation(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"zz", "aa"}, []string{steps[0].ID, steps[1].ID})
}

func TestDetachMaterialsAndDispatchItems(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.SaveMakeMethod(ctx, &model.JobMakeMethod{ID: "m1", JobID: "j1", CompanyID: "c1"}))
	require.NoError(t, repo.SaveMaterial(ctx, &model.JobMaterial{ID: "mat1", JobMakeMethodID: "m1", JobOperationID: "o1", CompanyID: "c1"}))
	require.NoError(t, repo.SaveMaterial(ctx, &model.JobMaterial{ID: "mat2", JobMakeMethodID: "m1", JobOperationID: "o2", CompanyID: "c1"}))
	require.NoError(t, repo.SaveDispatchItem(ctx, &model.MaintenanceDispatchItem{ID: "d1", OperationID: "o1"}))

	n, err := repo.DetachMaterialsFromOperation(ctx, "o1", "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	mat, err := repo.FindMaterial(ctx, "c1", "mat1")
	require.NoError(t, err)
	assert.Empty(t, mat.JobOperationID)
	assert.Equal(t, "u1", mat.UpdatedBy)

	n, err = repo.DetachDispatchItems(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, repo.DispatchItems()[0].OperationID)
}
