package model_test

import (
	"testing"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperationCommand(t *testing.T) {
	current := &model.Operation{
		SetupTime:   decimal.NewFromInt(1),
		LaborTime:   decimal.NewFromInt(2),
		MachineTime: decimal.NewFromInt(3),
	}

	cmd, err := model.ParseOperationCommand("laborTime", "0.5", current)
	require.NoError(t, err)
	timing, ok := cmd.(model.SetTiming)
	require.True(t, ok)
	assert.True(t, timing.SetupTime.Equal(decimal.NewFromInt(1)))
	assert.True(t, timing.LaborTime.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, timing.MachineTime.Equal(decimal.NewFromInt(3)))
	assert.True(t, cmd.AffectsRequirements())
	assert.False(t, cmd.AffectsGraph())

	cmd, err = model.ParseOperationCommand("workCenterId", "wc-1", nil)
	require.NoError(t, err)
	assert.True(t, cmd.AffectsGraph())

	op := &model.Operation{}
	cmd.Apply(op)
	assert.Equal(t, "wc-1", op.WorkCenterID)
}

func TestParseOperationCommand_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"unknown field":      {"color", "red"},
		"bad order":          {"operationOrder", "Sometimes"},
		"scrap out of range": {"scrapPercent", "100"},
		"negative scrap":     {"scrapPercent", "-1"},
		"bad number":         {"setupTime", "abc"},
		"empty description":  {"description", ""},
		"negative priority":  {"priority", "-3"},
	}
	for name, fv := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := model.ParseOperationCommand(fv[0], fv[1], nil)
			assert.Error(t, err)
		})
	}
}

func TestMoveOnScheduleBoard(t *testing.T) {
	cmd := model.MoveOnScheduleBoard{WorkCenterID: "wc-2", Priority: 4}
	require.NoError(t, cmd.Validate())

	op := &model.Operation{WorkCenterID: "wc-1"}
	cmd.Apply(op)
	assert.Equal(t, "wc-2", op.WorkCenterID)
	assert.Equal(t, 4, op.Priority)

	assert.Error(t, model.MoveOnScheduleBoard{}.Validate())
}

func TestParseOperationOrder(t *testing.T) {
	o, err := model.ParseOperationOrder("")
	require.NoError(t, err)
	assert.Equal(t, model.OperationOrderAfterPrevious, o)

	o, err = model.ParseOperationOrder("With Previous")
	require.NoError(t, err)
	assert.Equal(t, model.OperationOrderWithPrevious, o)

	_, err = model.ParseOperationOrder("later")
	assert.Error(t, err)
}
