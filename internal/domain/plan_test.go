package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlan() *MonthlyPlan {
	return NewMonthlyPlan("2025-03", Requirement{
		GoalID:            uuid.New(),
		Remaining:         decimal.NewFromInt(3000),
		PeriodsLeft:       12,
		RequiredPerPeriod: decimal.NewFromInt(250),
		Status:            RequirementStatusOnTrack,
		Currency:          "EUR",
	}, time.Now())
}

func TestMonthlyPlan_EffectiveAmount(t *testing.T) {
	override := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		override *decimal.Decimal
		flex     FlexState
		want     decimal.Decimal
	}{
		{name: "calculated when no override", flex: FlexStateFlexible, want: decimal.NewFromInt(250)},
		{name: "override wins", override: &override, flex: FlexStateFlexible, want: decimal.NewFromInt(100)},
		{name: "protected keeps override", override: &override, flex: FlexStateProtected, want: decimal.NewFromInt(100)},
		{name: "skipped forces zero", flex: FlexStateSkipped, want: decimal.Zero},
		{name: "skipped beats override", override: &override, flex: FlexStateSkipped, want: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := newTestPlan()
			plan.Override = tt.override
			plan.Flex = tt.flex
			assert.True(t, tt.want.Equal(plan.EffectiveAmount()), "got %s", plan.EffectiveAmount())
		})
	}
}

func TestMonthlyPlan_TransitionTo(t *testing.T) {
	tests := []struct {
		from    PlanState
		to      PlanState
		allowed bool
	}{
		{PlanStateDraft, PlanStateExecuting, true},
		{PlanStateDraft, PlanStateCompleted, false},
		{PlanStateDraft, PlanStateDraft, false},
		{PlanStateExecuting, PlanStateDraft, true},
		{PlanStateExecuting, PlanStateCompleted, true},
		{PlanStateExecuting, PlanStateExecuting, false},
		{PlanStateCompleted, PlanStateExecuting, true},
		{PlanStateCompleted, PlanStateDraft, false},
		{PlanStateCompleted, PlanStateCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			plan := newTestPlan()
			plan.State = tt.from

			err := plan.TransitionTo(tt.to, time.Now())
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, plan.State)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidStateTransition))
			assert.Equal(t, tt.from, plan.State, "state must not change on rejection")
		})
	}
}

func TestMonthlyPlan_RecalculateOnlyInDraft(t *testing.T) {
	req := Requirement{
		RequiredPerPeriod: decimal.NewFromInt(300),
		Remaining:         decimal.NewFromInt(2700),
		PeriodsLeft:       9,
		Status:            RequirementStatusOnTrack,
		Currency:          "EUR",
	}

	draft := newTestPlan()
	require.NoError(t, draft.Recalculate(req, time.Now()))
	assert.True(t, draft.CalculatedRequired.Equal(decimal.NewFromInt(300)))

	executing := newTestPlan()
	executing.State = PlanStateExecuting
	err := executing.Recalculate(req, time.Now())
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.True(t, executing.CalculatedRequired.Equal(decimal.NewFromInt(250)), "executing plan stays frozen")
}

func TestMonthlyPlan_SetOverride(t *testing.T) {
	plan := newTestPlan()
	amount := decimal.NewFromInt(180)

	require.NoError(t, plan.SetOverride(&amount, time.Now()))
	amount = decimal.NewFromInt(1) // caller mutation must not leak in
	assert.True(t, plan.EffectiveAmount().Equal(decimal.NewFromInt(180)))

	plan.State = PlanStateExecuting
	update := decimal.NewFromInt(200)
	require.NoError(t, plan.SetOverride(&update, time.Now()), "explicit edits are allowed while executing")

	negative := decimal.NewFromInt(-1)
	assert.Error(t, plan.SetOverride(&negative, time.Now()))

	plan.State = PlanStateCompleted
	assert.ErrorIs(t, plan.SetOverride(nil, time.Now()), ErrInvalidStateTransition)
}

func TestMonthlyPlan_SetFlexLockedOutsideDraft(t *testing.T) {
	plan := newTestPlan()
	require.NoError(t, plan.SetFlex(FlexStateProtected, time.Now()))
	assert.Equal(t, FlexStateProtected, plan.Flex)

	assert.Error(t, plan.SetFlex(FlexState("bogus"), time.Now()))

	plan.State = PlanStateExecuting
	assert.ErrorIs(t, plan.SetFlex(FlexStateSkipped, time.Now()), ErrInvalidStateTransition)
}

func TestMonthlyPlan_Validate(t *testing.T) {
	plan := newTestPlan()
	assert.NoError(t, plan.Validate())

	plan.Month = "2025-3"
	assert.Error(t, plan.Validate())

	plan = newTestPlan()
	plan.GoalID = uuid.Nil
	assert.Error(t, plan.Validate())
}
