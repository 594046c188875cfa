package requirement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// Calculator computes per-goal contribution requirements
type Calculator struct {
	AttentionThreshold decimal.Decimal
	CriticalThreshold  decimal.Decimal
}

// NewCalculator creates a new Calculator instance
func NewCalculator(attention, critical decimal.Decimal) *Calculator {
	return &Calculator{
		AttentionThreshold: attention,
		CriticalThreshold:  critical,
	}
}

// Calculate computes the requirement of a goal from its allocated-asset valuation.
// Logic:
//   - remaining = max(0, target - currentTotal)
//   - periodsLeft = max(1, monthly payment dates from the next payment date through the deadline)
//   - requiredPerPeriod = remaining / periodsLeft
//
// currentTotal must be the current valuation of the assets allocated to the goal.
// Never add contribution history on top: asset value already reflects every past
// deposit at today's price, so adding deposits would count them twice.
func (c *Calculator) Calculate(goal *domain.Goal, currentTotal decimal.Decimal, now time.Time) domain.Requirement {
	remaining := goal.TargetAmount.Sub(currentTotal)
	if remaining.LessThan(decimal.Zero) {
		remaining = decimal.Zero
	}

	periods := PeriodsLeft(now, goal.Deadline)
	required := remaining.DivRound(decimal.NewFromInt(int64(periods)), 2)

	return domain.Requirement{
		GoalID:            goal.ID,
		CurrentTotal:      currentTotal,
		Remaining:         remaining,
		PeriodsLeft:       periods,
		RequiredPerPeriod: required,
		Status:            c.classify(remaining, required, periods),
		Currency:          goal.Currency,
	}
}

func (c *Calculator) classify(remaining, required decimal.Decimal, periods int) domain.RequirementStatus {
	switch {
	case remaining.LessThanOrEqual(decimal.Zero):
		return domain.RequirementStatusCompleted
	case required.GreaterThan(c.CriticalThreshold):
		return domain.RequirementStatusCritical
	case required.GreaterThan(c.AttentionThreshold) || periods == 1:
		return domain.RequirementStatusAttention
	default:
		return domain.RequirementStatusOnTrack
	}
}

// NextPaymentDate returns the next monthly payment date (the 1st) on or after now, UTC
func NextPaymentDate(now time.Time) time.Time {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if now.Day() == 1 {
		return first
	}
	return first.AddDate(0, 1, 0)
}

// PeriodsLeft counts monthly payment dates between the next payment date and the
// deadline, inclusive, never less than 1
func PeriodsLeft(now, deadline time.Time) int {
	next := NextPaymentDate(now)
	deadline = deadline.UTC()
	if deadline.Before(next) {
		return 1
	}
	months := (deadline.Year()-next.Year())*12 + int(deadline.Month()) - int(next.Month()) + 1
	if months < 1 {
		return 1
	}
	return months
}
