package orderstore_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
	"github.com/tigerroll/sequencer/pkg/sequencer/core/orderstore"
	"github.com/tigerroll/sequencer/pkg/sequencer/infrastructure/repository/inmemory"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRepo fails sort-order writes for the listed IDs.
type failingRepo struct {
	*inmemory.InMemorySequencingRepository
	failFor map[string]bool
}

func (r *failingRepo) UpdateOperationSortOrder(ctx context.Context, id string, sortOrder int, updatedBy string, at time.Time) error {
	if r.failFor[id] {
		return errors.New("write rejected")
	}
	return r.InMemorySequencingRepository.UpdateOperationSortOrder(ctx, id, sortOrder, updatedBy, at)
}

func seedOperations(t *testing.T, repo *inmemory.InMemorySequencingRepository, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, repo.InsertOperation(context.Background(), &model.Operation{
			ID: id, JobID: "j1", CompanyID: "c1", SortOrder: i + 1,
		}))
	}
}

func orderOf(t *testing.T, repo *inmemory.InMemorySequencingRepository) []string {
	t.Helper()
	ops, err := repo.ListOperationsByJob(context.Background(), "c1", "j1")
	require.NoError(t, err)
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
		assert.Equal(t, i+1, op.SortOrder, "sort order of %s", op.ID)
	}
	return ids
}

func TestApplyOperationOrder_Monotonic(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	seedOperations(t, repo, "C", "A", "B")
	store := orderstore.NewStore(repo, repo)

	res, err := store.ApplyOperationOrder(context.Background(), "c1", "j1", []model.OperationOrderUpdate{
		{ID: "A", Order: 1, UpdatedBy: "u1"},
		{ID: "B", Order: 2, UpdatedBy: "u1"},
		{ID: "C", Order: 3, UpdatedBy: "u1"},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, []string{"A", "B", "C"}, orderOf(t, repo))
	assert.Equal(t, 3, res.AppliedCount())
	assert.Equal(t, 1, res.Items[0].Order)
}

func TestApplyOperationOrder_PartialFailureTransparency(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	seedOperations(t, repo, "A", "B", "C")
	store := orderstore.NewStore(repo, repo)

	res, err := store.ApplyOperationOrder(context.Background(), "c1", "j1", []model.OperationOrderUpdate{
		{ID: "C", Order: 1, UpdatedBy: "u1"},
		{ID: "B", Order: math.NaN(), UpdatedBy: "u1"},
		{ID: "ghost", Order: 2, UpdatedBy: "u1"},
		{ID: "", Order: 2, UpdatedBy: "u1"},
		{ID: "C", Order: 3, UpdatedBy: "u1"},
		{ID: "A", Order: -1, UpdatedBy: "u1"},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 6)
	assert.True(t, res.Items[0].Applied())
	assert.Equal(t, 1, res.Items[0].Order)
	assert.True(t, exception.IsValidation(res.Items[1].Err))
	assert.True(t, exception.IsNotFound(res.Items[2].Err))
	assert.True(t, exception.IsValidation(res.Items[3].Err))
	assert.True(t, exception.IsValidation(res.Items[4].Err), "duplicate id in batch")
	assert.True(t, exception.IsValidation(res.Items[5].Err))
	assert.Equal(t, 1, res.AppliedCount())
	assert.Equal(t, 5, res.FailedCount())
	assert.Error(t, res.Err())

	assert.Equal(t, []string{"C", "A", "B"}, orderOf(t, repo))
	assert.Len(t, res.Renumbered, 2)
}

func TestApplyOperationOrder_WriteFailureDoesNotRollBack(t *testing.T) {
	mem := inmemory.NewInMemorySequencingRepository()
	seedOperations(t, mem, "A", "B", "C")
	repo := &failingRepo{InMemorySequencingRepository: mem, failFor: map[string]bool{"A": true}}
	store := orderstore.NewStore(repo, repo)

	res, err := store.ApplyOperationOrder(context.Background(), "c1", "j1", []model.OperationOrderUpdate{
		{ID: "B", Order: 1, UpdatedBy: "u1"},
		{ID: "A", Order: 2, UpdatedBy: "u1"},
	})
	require.NoError(t, err)
	assert.True(t, res.Items[0].Applied())
	assert.False(t, res.Items[1].Applied())
	assert.Equal(t, 0, res.Items[1].Order)
	assert.Error(t, res.Err())

	ops, err := mem.ListOperationsByJob(context.Background(), "c1", "j1")
	require.NoError(t, err)
	byID := map[string]int{}
	for _, op := range ops {
		byID[op.ID] = op.SortOrder
	}
	assert.Equal(t, 1, byID["B"], "successful write is kept")
	assert.Equal(t, 1, byID["A"], "failed write leaves the stored value")
}

func TestApplyOperationOrder_DuplicatePositionsResolveDeterministically(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	seedOperations(t, repo, "A", "B", "C", "D")
	store := orderstore.NewStore(repo, repo)

	res, err := store.ApplyOperationOrder(context.Background(), "c1", "j1", []model.OperationOrderUpdate{
		{ID: "D", Order: 1, UpdatedBy: "u1"},
		{ID: "C", Order: 1, UpdatedBy: "u1"},
	})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, []string{"C", "D", "A", "B"}, orderOf(t, repo))
}

func TestApplyOperationOrder_RequiresJob(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	store := orderstore.NewStore(repo, repo)
	_, err := store.ApplyOperationOrder(context.Background(), "c1", "", nil)
	assert.True(t, exception.IsValidation(err))
}

func TestApplyStepOrder(t *testing.T) {
	repo := inmemory.NewInMemorySequencingRepository()
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, repo.InsertStep(ctx, &model.OperationStep{ID: fmt.Sprintf("s%d", i), OperationID: "o1", SortOrder: i}))
	}
	store := orderstore.NewStore(repo, repo)

	res, err := store.ApplyStepOrder(ctx, "o1", []model.StepOrderUpdate{
		{ID: "s3", SortOrder: 1, UpdatedBy: "u1"},
		{ID: "other", SortOrder: 2, UpdatedBy: "u1"},
	})
	require.NoError(t, err)
	assert.True(t, res.Items[0].Applied())
	assert.False(t, res.Items[1].Applied())

	steps, err := repo.ListStepsByOperation(ctx, "o1")
	require.NoError(t, err)
	ids := []string{}
	for _, st := range steps {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"s3", "s1", "s2"}, ids)
}
