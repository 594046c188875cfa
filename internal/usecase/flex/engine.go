package flex

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// Strategy selects which flexible goals absorb an adjustment first
type Strategy string

const (
	StrategyBalanced          Strategy = "balanced"
	StrategyPrioritizeUrgent  Strategy = "prioritizeUrgent"
	StrategyPrioritizeLargest Strategy = "prioritizeLargest"
	StrategyMinimizeRisk      Strategy = "minimizeRisk"
)

// ParseStrategy maps a string to a Strategy; empty means balanced
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyBalanced, nil
	case StrategyBalanced, StrategyPrioritizeUrgent, StrategyPrioritizeLargest, StrategyMinimizeRisk:
		return Strategy(s), nil
	}
	return "", domain.Invalidf("unknown flex strategy %q", s)
}

var (
	hundred = decimal.NewFromInt(100)

	// DefaultPercentage leaves every plan at its calculated amount
	DefaultPercentage = hundred
	// MaxPercentage is the top of the slider
	MaxPercentage = decimal.NewFromInt(150)
	// CapFactor bounds a flexible goal at 150% of its calculated requirement
	CapFactor = decimal.RequireFromString("1.5")
)

// Item is one plan as seen by the engine
type Item struct {
	PlanID           uuid.UUID
	GoalID           uuid.UUID
	Name             string
	Amount           decimal.Decimal // current effective amount; base for flexible goals
	Calculated       decimal.Decimal // calculated requirement; bounds the cap
	Flex             domain.FlexState
	PeriodsRemaining int
	Status           domain.RequirementStatus
}

// Request describes one slider position
type Request struct {
	Percentage *decimal.Decimal // nil means DefaultPercentage
	Strategy   Strategy
	Items      []Item
	// Budget, when set, replaces the percentage with an absolute monthly total
	// covering protected and flexible goals together.
	Budget *decimal.Decimal
}

// Adjustment is the engine output for one plan
type Adjustment struct {
	PlanID       uuid.UUID
	GoalID       uuid.UUID
	Name         string
	Flex         domain.FlexState
	Original     decimal.Decimal
	Adjusted     decimal.Decimal
	ReductionPct decimal.Decimal
	Reason       string
	Risk         RiskLevel
}

// Result is the outcome of Adjust
type Result struct {
	Strategy      Strategy
	Percentage    decimal.Decimal
	Adjustments   []Adjustment
	TotalOriginal decimal.Decimal
	TotalAdjusted decimal.Decimal
	// Unapplied is excess that no flexible goal could take below its cap
	Unapplied decimal.Decimal
	// Shortfall is how far the budget falls short of the protected total
	Shortfall  decimal.Decimal
	Infeasible bool
}

// Err returns an error wrapping ErrRedistributionInfeasible when the result is infeasible
func (r *Result) Err() error {
	if !r.Infeasible {
		return nil
	}
	return fmt.Errorf("%w: budget is %s short of protected amounts", domain.ErrRedistributionInfeasible, r.Shortfall.StringFixed(2))
}

// Engine redistributes monthly plan amounts across goals
type Engine struct{}

// NewEngine creates a new Engine instance
func NewEngine() *Engine {
	return &Engine{}
}

// Adjust computes adjusted amounts for every item. It never mutates the items.
// Logic:
//  1. Skipped goals drop to zero; protected goals keep their amount
//  2. Flexible goals share a target total: p% of their effective sum, plus a share
//     of the skipped amounts growing from none at 100% to all of them at 150%,
//     or the budget minus the protected total
//  3. The target is capped at 150% of every flexible goal's calculated requirement;
//     the excess is Unapplied
//  4. The strategy decides which flexible goals absorb the difference first
//
// Removed amounts are never collected elsewhere. A budget below the protected
// total marks the result Infeasible, reports the Shortfall and funds no flexible goal.
func (e *Engine) Adjust(req Request) (*Result, error) {
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}

	pct := DefaultPercentage
	if req.Percentage != nil {
		pct = *req.Percentage
	}
	if pct.LessThan(decimal.Zero) || pct.GreaterThan(MaxPercentage) {
		return nil, domain.Invalidf("percentage must be between 0 and 150, got %s", pct.String())
	}
	if req.Budget != nil && req.Budget.LessThan(decimal.Zero) {
		return nil, domain.Invalidf("budget cannot be negative")
	}

	result := &Result{
		Strategy:      strategy,
		Percentage:    pct,
		Adjustments:   make([]Adjustment, len(req.Items)),
		TotalOriginal: decimal.Zero,
		TotalAdjusted: decimal.Zero,
		Unapplied:     decimal.Zero,
		Shortfall:     decimal.Zero,
	}

	protectedSum := decimal.Zero
	skippedSum := decimal.Zero
	var flexible []int
	for i, item := range req.Items {
		if item.Amount.IsNegative() || item.Calculated.IsNegative() {
			return nil, domain.Invalidf("plan %s has a negative amount", item.PlanID)
		}
		adj := Adjustment{
			PlanID:   item.PlanID,
			GoalID:   item.GoalID,
			Name:     item.Name,
			Flex:     item.Flex,
			Original: item.Amount,
		}
		switch item.Flex {
		case domain.FlexStateProtected:
			adj.Adjusted = item.Amount
			protectedSum = protectedSum.Add(item.Amount)
		case domain.FlexStateSkipped:
			adj.Original = item.Calculated
			adj.Adjusted = decimal.Zero
			skippedSum = skippedSum.Add(item.Calculated)
		case domain.FlexStateFlexible:
			flexible = append(flexible, i)
		default:
			return nil, domain.Invalidf("plan %s has invalid flex state %q", item.PlanID, item.Flex)
		}
		result.Adjustments[i] = adj
		result.TotalOriginal = result.TotalOriginal.Add(adj.Original)
	}

	baseSum := decimal.Zero
	capSum := decimal.Zero
	for _, i := range flexible {
		baseSum = baseSum.Add(req.Items[i].Amount)
		capSum = capSum.Add(capOf(req.Items[i]))
	}

	target := baseSum.Mul(pct).Div(hundred)
	if pct.GreaterThan(hundred) {
		// skipped amounts only feed increases
		target = target.Add(skippedSum.Mul(pct.Sub(hundred)).Div(MaxPercentage.Sub(hundred)))
	}
	if req.Budget != nil {
		target = req.Budget.Sub(protectedSum)
		if target.IsNegative() {
			result.Infeasible = true
			result.Shortfall = target.Neg()
			target = decimal.Zero
		}
	}
	if target.GreaterThan(capSum) {
		result.Unapplied = target.Sub(capSum)
		target = capSum
	}

	amounts := distribute(strategy, req.Items, flexible, target)
	applied := decimal.Zero
	for k, i := range flexible {
		result.Adjustments[i].Adjusted = amounts[k]
		applied = applied.Add(amounts[k])
	}
	result.Unapplied = result.Unapplied.Add(target.Sub(applied)).Round(2)
	if result.Unapplied.IsNegative() {
		result.Unapplied = decimal.Zero
	}

	for i := range result.Adjustments {
		adj := &result.Adjustments[i]
		item := req.Items[i]
		adj.ReductionPct = reductionPct(adj.Original, adj.Adjusted)
		adj.Risk = ClassifyRisk(adj.ReductionPct, item.PeriodsRemaining)
		adj.Reason = reason(item.Flex, strategy, adj, result.Infeasible)
		result.TotalAdjusted = result.TotalAdjusted.Add(adj.Adjusted)
	}

	return result, nil
}

// distribute returns the adjusted amount of every flexible item, in order, rounded to
// cents and summing to target where the strategy allows it.
func distribute(strategy Strategy, items []Item, flexible []int, target decimal.Decimal) []decimal.Decimal {
	bases := make([]decimal.Decimal, len(flexible))
	caps := make([]decimal.Decimal, len(flexible))
	weights := make([]decimal.Decimal, len(flexible))
	baseSum := decimal.Zero
	for k, i := range flexible {
		bases[k] = items[i].Amount
		caps[k] = capOf(items[i])
		weights[k] = items[i].Calculated
		baseSum = baseSum.Add(bases[k])
	}
	if len(flexible) == 0 {
		return nil
	}

	var out []decimal.Decimal
	switch strategy {
	case StrategyBalanced:
		out = scale(bases, caps, baseSum, target)
	case StrategyPrioritizeLargest:
		out = proportional(bases, caps, weights, target)
	case StrategyPrioritizeUrgent:
		out = sequential(bases, caps, target, urgencyOrder(items, flexible))
	case StrategyMinimizeRisk:
		out = sequential(bases, caps, target, riskOrder(items, flexible, target.LessThan(baseSum)))
	}
	return roundToCents(out, caps, target)
}

// capOf is the most a flexible goal may receive: 150% of its calculated requirement,
// or the user's own amount when that is already higher.
func capOf(item Item) decimal.Decimal {
	return decimal.Max(item.Calculated.Mul(CapFactor), item.Amount)
}

// scale multiplies every base by target/baseSum, clamped to its cap
func scale(bases, caps []decimal.Decimal, baseSum, target decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bases))
	if baseSum.IsZero() {
		for k := range out {
			out[k] = decimal.Zero
		}
		return out
	}
	factor := target.Div(baseSum)
	for k, b := range bases {
		out[k] = decimal.Min(b.Mul(factor), caps[k])
	}
	return out
}

// proportional shares the difference between target and the bases out by weight.
// Items that reach zero or their cap drop out and the rest is shared again among
// the others.
func proportional(bases, caps, weights []decimal.Decimal, target decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bases))
	copy(out, bases)

	diff := target
	for _, b := range bases {
		diff = diff.Sub(b)
	}

	open := make([]bool, len(bases))
	for k := range open {
		open[k] = weights[k].IsPositive()
	}

	for !diff.IsZero() {
		weightSum := decimal.Zero
		for k := range out {
			if open[k] {
				weightSum = weightSum.Add(weights[k])
			}
		}
		if weightSum.IsZero() {
			break
		}

		moved := decimal.Zero
		clamped := false
		for k := range out {
			if !open[k] {
				continue
			}
			next := out[k].Add(diff.Mul(weights[k]).Div(weightSum))
			switch {
			case next.IsNegative():
				next = decimal.Zero
				open[k], clamped = false, true
			case next.GreaterThan(caps[k]):
				next = caps[k]
				open[k], clamped = false, true
			}
			moved = moved.Add(next.Sub(out[k]))
			out[k] = next
		}
		diff = diff.Sub(moved)
		if !clamped {
			break
		}
	}
	return out
}

// sequential applies the whole difference to items in order: reductions down to zero,
// increases up to the cap.
func sequential(bases, caps []decimal.Decimal, target decimal.Decimal, order []int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(bases))
	copy(out, bases)

	diff := target
	for _, b := range bases {
		diff = diff.Sub(b)
	}

	for _, k := range order {
		if diff.IsZero() {
			break
		}
		if diff.IsNegative() {
			cut := decimal.Min(diff.Neg(), out[k])
			out[k] = out[k].Sub(cut)
			diff = diff.Add(cut)
			continue
		}
		room := caps[k].Sub(out[k])
		add := decimal.Min(diff, room)
		out[k] = out[k].Add(add)
		diff = diff.Sub(add)
	}
	return out
}

// urgencyOrder puts the goals with the fewest periods left first, for reductions and
// increases alike. Positions index into flexible.
func urgencyOrder(items []Item, flexible []int) []int {
	order := positions(flexible)
	sort.SliceStable(order, func(a, b int) bool {
		return items[flexible[order[a]]].PeriodsRemaining < items[flexible[order[b]]].PeriodsRemaining
	})
	return order
}

// riskOrder reduces onTrack goals before attention before critical ones, and funds
// increases the other way round. Among equals, reductions hit the goal with the most
// periods left first.
func riskOrder(items []Item, flexible []int, reducing bool) []int {
	order := positions(flexible)
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := items[flexible[order[a]]], items[flexible[order[b]]]
		ra, rb := statusRank(ia.Status), statusRank(ib.Status)
		if ra != rb {
			if reducing {
				return ra < rb
			}
			return ra > rb
		}
		if reducing {
			return ia.PeriodsRemaining > ib.PeriodsRemaining
		}
		return ia.PeriodsRemaining < ib.PeriodsRemaining
	})
	return order
}

func statusRank(s domain.RequirementStatus) int {
	switch s {
	case domain.RequirementStatusCritical:
		return 3
	case domain.RequirementStatusAttention:
		return 2
	case domain.RequirementStatusOnTrack:
		return 1
	default:
		return 0
	}
}

func positions(flexible []int) []int {
	order := make([]int, len(flexible))
	for k := range order {
		order[k] = k
	}
	return order
}

// roundToCents rounds every amount and moves the rounding residue onto the largest
// amount that can take it, so the rounded sum matches the rounded target.
func roundToCents(amounts, caps []decimal.Decimal, target decimal.Decimal) []decimal.Decimal {
	sum := decimal.Zero
	exact := decimal.Zero
	for k := range amounts {
		exact = exact.Add(amounts[k])
		amounts[k] = amounts[k].Round(2)
		sum = sum.Add(amounts[k])
	}
	want := decimal.Min(exact, target).Round(2)
	residue := want.Sub(sum)
	if residue.IsZero() {
		return amounts
	}

	largest := -1
	for k := range amounts {
		if largest == -1 || amounts[k].GreaterThan(amounts[largest]) {
			largest = k
		}
	}
	if largest >= 0 {
		fixed := amounts[largest].Add(residue)
		if !fixed.IsNegative() && fixed.LessThanOrEqual(caps[largest].Round(2)) {
			amounts[largest] = fixed
		}
	}
	return amounts
}

func reductionPct(original, adjusted decimal.Decimal) decimal.Decimal {
	if !original.IsPositive() {
		return decimal.Zero
	}
	return original.Sub(adjusted).Mul(hundred).DivRound(original, 2)
}

func reason(flex domain.FlexState, strategy Strategy, adj *Adjustment, infeasible bool) string {
	switch flex {
	case domain.FlexStateProtected:
		return "protected: amount unchanged"
	case domain.FlexStateSkipped:
		return "skipped this month"
	}
	if infeasible {
		return "budget does not cover protected goals"
	}
	switch {
	case adj.ReductionPct.IsPositive():
		return fmt.Sprintf("reduced by %s%% (%s)", adj.ReductionPct.StringFixed(0), strategy)
	case adj.ReductionPct.IsNegative():
		return fmt.Sprintf("increased by %s%% (%s)", adj.ReductionPct.Neg().StringFixed(0), strategy)
	default:
		return "unchanged"
	}
}
