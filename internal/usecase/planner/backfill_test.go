package planner

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

func TestInferMonth(t *testing.T) {
	tests := []struct {
		hint    string
		want    domain.MonthLabel
		wantErr bool
	}{
		{"2025-01", "2025-01", false},
		{"2025-01-20", "2025-01", false},
		{"2025-01-20T10:00:00Z", "2025-01", false},
		{"01/2025", "2025-01", false},
		{"January 2025", "2025-01", false},
		{"Jan 2025", "2025-01", false},
		{"", "", true},
		{"sometime", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, err := inferMonth(tt.hint)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrCalculationAmbiguous)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportLegacyPlans(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	house := f.addGoal(t, "House", "3000")
	car := f.addGoal(t, "Car", "1200")
	override := decimal.NewFromInt(90)

	res, err := f.svc.ImportLegacyPlans(ctx, []LegacyPlan{
		{GoalID: house.ID, MonthHint: "2025-01", Flex: "protected"},
		{GoalID: car.ID, MonthHint: "last spring", Override: &override},
		{GoalID: house.ID, MonthHint: "Jan 2025"},
		{GoalID: uuid.New(), MonthHint: "2025-01"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Imported, 2)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.NeedReview)
	assert.Len(t, res.Failed, 1)

	jan, err := f.svc.ListPlans(ctx, "2025-01")
	require.NoError(t, err)
	require.Len(t, jan, 1)
	assert.Equal(t, domain.FlexStateProtected, jan[0].Flex)
	assert.False(t, jan[0].NeedsReview)

	current, err := f.svc.ListPlans(ctx, domain.MonthOf(f.now))
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.True(t, current[0].NeedsReview)
	assert.Equal(t, "90", current[0].EffectiveAmount().String())
}
