package flex

import "github.com/shopspring/decimal"

// RiskLevel tells the user how much an adjustment endangers a goal's deadline
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

var (
	highReductionPct   = decimal.NewFromInt(50)
	mediumReductionPct = decimal.NewFromInt(20)
)

const (
	highRiskPeriods   = 2
	mediumRiskPeriods = 6
)

// ClassifyRisk maps a reduction percentage and the periods left on the goal to a risk level.
// Thresholds:
//   - no reduction                        -> low
//   - reduction > 50% or periods <= 2     -> high
//   - reduction > 20% or periods <= 6     -> medium
//   - otherwise                           -> low
func ClassifyRisk(reductionPct decimal.Decimal, periodsRemaining int) RiskLevel {
	switch {
	case reductionPct.LessThanOrEqual(decimal.Zero):
		return RiskLow
	case reductionPct.GreaterThan(highReductionPct) || periodsRemaining <= highRiskPeriods:
		return RiskHigh
	case reductionPct.GreaterThan(mediumReductionPct) || periodsRemaining <= mediumRiskPeriods:
		return RiskMedium
	default:
		return RiskLow
	}
}
