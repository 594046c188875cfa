package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanState is the lifecycle state of a MonthlyPlan
type PlanState string

const (
	PlanStateDraft     PlanState = "draft"
	PlanStateExecuting PlanState = "executing"
	PlanStateCompleted PlanState = "completed"
)

// FlexState controls how a plan takes part in flex redistribution
type FlexState string

const (
	FlexStateProtected FlexState = "protected"
	FlexStateFlexible  FlexState = "flexible"
	FlexStateSkipped   FlexState = "skipped"
)

// RequirementStatus classifies how demanding a goal's required contribution is
type RequirementStatus string

const (
	RequirementStatusCompleted RequirementStatus = "completed"
	RequirementStatusCritical  RequirementStatus = "critical"
	RequirementStatusAttention RequirementStatus = "attention"
	RequirementStatusOnTrack   RequirementStatus = "onTrack"
)

// ParsePlanState maps a stored string to a PlanState
func ParsePlanState(s string) (PlanState, error) {
	switch PlanState(s) {
	case PlanStateDraft, PlanStateExecuting, PlanStateCompleted:
		return PlanState(s), nil
	}
	return "", errors.New("invalid plan state: " + s)
}

// ParseFlexState maps a stored string to a FlexState
func ParseFlexState(s string) (FlexState, error) {
	switch FlexState(s) {
	case FlexStateProtected, FlexStateFlexible, FlexStateSkipped:
		return FlexState(s), nil
	}
	return "", errors.New("invalid flex state: " + s)
}

// Requirement is the output of the goal requirement calculator
type Requirement struct {
	GoalID            uuid.UUID
	CurrentTotal      decimal.Decimal
	Remaining         decimal.Decimal
	PeriodsLeft       int
	RequiredPerPeriod decimal.Decimal
	Status            RequirementStatus
	Currency          string
}

// MonthlyPlan is one goal's target contribution for one calendar month
// At most one plan exists per (GoalID, Month).
type MonthlyPlan struct {
	ID                 uuid.UUID
	GoalID             uuid.UUID
	Month              MonthLabel
	CalculatedRequired decimal.Decimal
	Remaining          decimal.Decimal
	PeriodsRemaining   int
	Currency           string
	Status             RequirementStatus
	Override           *decimal.Decimal // User supplied; wins over CalculatedRequired
	State              PlanState
	Flex               FlexState
	NeedsReview        bool // Month could not be inferred during backfill
	CreatedAt          time.Time
	ModifiedAt         time.Time
	CalculatedAt       time.Time
}

// NewMonthlyPlan builds a draft, flexible plan from a requirement
func NewMonthlyPlan(month MonthLabel, req Requirement, now time.Time) *MonthlyPlan {
	return &MonthlyPlan{
		ID:                 uuid.New(),
		GoalID:             req.GoalID,
		Month:              month,
		CalculatedRequired: req.RequiredPerPeriod,
		Remaining:          req.Remaining,
		PeriodsRemaining:   req.PeriodsLeft,
		Currency:           req.Currency,
		Status:             req.Status,
		State:              PlanStateDraft,
		Flex:               FlexStateFlexible,
		CreatedAt:          now,
		ModifiedAt:         now,
		CalculatedAt:       now,
	}
}

// Validate ensures the plan adheres to domain rules
func (p *MonthlyPlan) Validate() error {
	if p.GoalID == uuid.Nil {
		return Invalidf("plan must reference a goal")
	}
	if !p.Month.Valid() {
		return Invalidf("plan must have a valid month label")
	}
	if p.CalculatedRequired.LessThan(decimal.Zero) {
		return Invalidf("calculated required amount cannot be negative")
	}
	if p.Override != nil && p.Override.LessThan(decimal.Zero) {
		return Invalidf("override amount cannot be negative")
	}
	if _, err := ParsePlanState(string(p.State)); err != nil {
		return err
	}
	if _, err := ParseFlexState(string(p.Flex)); err != nil {
		return err
	}
	return nil
}

// EffectiveAmount is override ?? calculated, forced to zero when skipped
func (p *MonthlyPlan) EffectiveAmount() decimal.Decimal {
	if p.Flex == FlexStateSkipped {
		return decimal.Zero
	}
	if p.Override != nil {
		return *p.Override
	}
	return p.CalculatedRequired
}

// SetOverride stores a user supplied amount. Allowed while draft or executing;
// completed plans are archived.
func (p *MonthlyPlan) SetOverride(amount *decimal.Decimal, now time.Time) error {
	if p.State == PlanStateCompleted {
		return transitionError("plan", string(p.State), string(p.State), "completed plans cannot be edited")
	}
	if amount != nil && amount.LessThan(decimal.Zero) {
		return Invalidf("override amount cannot be negative")
	}
	if amount != nil {
		v := *amount
		p.Override = &v
	} else {
		p.Override = nil
	}
	p.ModifiedAt = now
	return nil
}

// SetFlex changes the flex classification of a draft plan
func (p *MonthlyPlan) SetFlex(state FlexState, now time.Time) error {
	if _, err := ParseFlexState(string(state)); err != nil {
		return err
	}
	if p.State != PlanStateDraft {
		return transitionError("plan", string(p.State), string(p.State), "flex classification is locked outside draft")
	}
	p.Flex = state
	p.ModifiedAt = now
	return nil
}

// Recalculate refreshes the calculated fields. Only draft plans may be recalculated:
// executing and completed plans keep the values locked in at start.
func (p *MonthlyPlan) Recalculate(req Requirement, now time.Time) error {
	if p.State != PlanStateDraft {
		return transitionError("plan", string(p.State), string(p.State), "only draft plans can be recalculated")
	}
	p.CalculatedRequired = req.RequiredPerPeriod
	p.Remaining = req.Remaining
	p.PeriodsRemaining = req.PeriodsLeft
	p.Currency = req.Currency
	p.Status = req.Status
	p.CalculatedAt = now
	p.ModifiedAt = now
	return nil
}

// TransitionTo moves the plan along draft -> executing -> completed.
// executing -> draft and completed -> executing are the undo edges.
func (p *MonthlyPlan) TransitionTo(next PlanState, now time.Time) error {
	allowed := false
	switch p.State {
	case PlanStateDraft:
		allowed = next == PlanStateExecuting
	case PlanStateExecuting:
		allowed = next == PlanStateDraft || next == PlanStateCompleted
	case PlanStateCompleted:
		allowed = next == PlanStateExecuting
	}
	if !allowed {
		return transitionError("plan", string(p.State), string(next), "")
	}
	p.State = next
	p.ModifiedAt = now
	return nil
}

// Clone returns a deep copy of the plan
func (p *MonthlyPlan) Clone() *MonthlyPlan {
	c := *p
	if p.Override != nil {
		v := *p.Override
		c.Override = &v
	}
	return &c
}
