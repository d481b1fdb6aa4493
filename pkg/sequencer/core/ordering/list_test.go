package ordering_test

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/ordering"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := ordering.New("a", "b", "a")
	assert.Error(t, err)

	_, err = ordering.New("a", "")
	assert.Error(t, err)
}

func TestFromEntries_NormalizesPositions(t *testing.T) {
	l, err := ordering.FromEntries([]ordering.Entry{
		{ID: "c", Position: 10},
		{ID: "a", Position: 2},
		{ID: "b", Position: 2},
		{ID: "d", Position: 2.5},
	})
	require.NoError(t, err)
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"a", "b", "d", "c"}, l.IDs())
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "d": 3, "c": 4}, l.Assignments())
}

func TestInsertRemoveMove(t *testing.T) {
	l, err := ordering.New("a", "b", "c")
	require.NoError(t, err)

	require.NoError(t, l.Insert("x", 2))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"a", "x", "b", "c"}, l.IDs())

	require.NoError(t, l.Insert("y", 99))
	assert.Equal(t, []string{"a", "x", "b", "c", "y"}, l.IDs())

	require.NoError(t, l.Remove("b"))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"a", "x", "c", "y"}, l.IDs())
	assert.False(t, l.Contains("b"))

	require.NoError(t, l.Move("a", 3))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"x", "c", "a", "y"}, l.IDs())

	require.NoError(t, l.Move("y", 1))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"y", "x", "c", "a"}, l.IDs())

	pos, ok := l.Position("c")
	assert.True(t, ok)
	assert.Equal(t, 3, pos)

	assert.Error(t, l.Remove("missing"))
	assert.Error(t, l.Move("missing", 1))
}

func TestReorder_SwapsFirstTwo(t *testing.T) {
	l, err := ordering.New("op1", "op2", "op3")
	require.NoError(t, err)

	require.NoError(t, l.Reorder(map[string]float64{"op2": 1, "op1": 2}))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"op2", "op1", "op3"}, l.IDs())
}

func TestReorder_SingleMoveDirection(t *testing.T) {
	l, _ := ordering.New("a", "b", "c", "d")
	require.NoError(t, l.Reorder(map[string]float64{"a": 3}))
	assert.Equal(t, []string{"b", "c", "a", "d"}, l.IDs(), "moving down lands after the occupant")

	l, _ = ordering.New("a", "b", "c", "d")
	require.NoError(t, l.Reorder(map[string]float64{"d": 2}))
	assert.Equal(t, []string{"a", "d", "b", "c"}, l.IDs(), "moving up lands before the occupant")
}

func TestReorder_DuplicateRequestedPositions(t *testing.T) {
	l, _ := ordering.New("a", "b", "c")
	require.NoError(t, l.Reorder(map[string]float64{"a": 5, "b": 5, "c": 5}))
	require.NoError(t, l.Validate())
	assert.Equal(t, []string{"a", "b", "c"}, l.IDs())
}

func TestReorder_FractionalPositions(t *testing.T) {
	l, _ := ordering.New("a", "b", "c")
	require.NoError(t, l.Reorder(map[string]float64{"c": 1.5}))
	assert.Equal(t, []string{"a", "c", "b"}, l.IDs())
}

func TestReorder_Rejects(t *testing.T) {
	l, _ := ordering.New("a", "b")
	assert.Error(t, l.Reorder(map[string]float64{"z": 1}))
	assert.Error(t, l.Reorder(map[string]float64{"a": math.NaN()}))
	assert.Error(t, l.Reorder(map[string]float64{"a": math.Inf(1)}))
	assert.Equal(t, []string{"a", "b"}, l.IDs())
}

func TestRandomMutationsKeepInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l, _ := ordering.New()
	next := 0
	for i := 0; i < 500; i++ {
		ids := l.IDs()
		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			next++
			require.NoError(t, l.Insert(fmt.Sprintf("id-%d", next), rng.Intn(len(ids)+2)))
		case op == 1:
			require.NoError(t, l.Remove(ids[rng.Intn(len(ids))]))
		case op == 2:
			require.NoError(t, l.Move(ids[rng.Intn(len(ids))], rng.Intn(len(ids)+1)))
		default:
			req := map[string]float64{}
			for _, id := range ids {
				if rng.Intn(2) == 0 {
					req[id] = rng.Float64() * float64(len(ids)+1)
				}
			}
			require.NoError(t, l.Reorder(req))
		}
		require.NoError(t, l.Validate())
	}
}
