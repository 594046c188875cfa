package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by repositories when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidStateTransition is matched by every *StateTransitionError
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicatePlanDetected is raised inside the atomic creation path when a plan
	// for the same (goal, month) already exists. Callers reuse the stored plan.
	ErrDuplicatePlanDetected = errors.New("duplicate plan detected")

	// ErrCalculationAmbiguous marks a backfilled plan whose month could not be inferred
	ErrCalculationAmbiguous = errors.New("calculation ambiguous")

	// ErrRedistributionInfeasible is reported when protected/skipped constraints
	// cannot be honored with non-negative amounts
	ErrRedistributionInfeasible = errors.New("redistribution infeasible")

	// ErrRateUnavailable is returned when no live or cached rate exists for a pair
	ErrRateUnavailable = errors.New("rate unavailable")

	// ErrNoPlans is returned when an execution is started for a month without plans
	ErrNoPlans = errors.New("no plans for month")

	// ErrNotTracking is returned when progress is requested for a month that never started
	ErrNotTracking = errors.New("month is not being tracked")

	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")
)

// ValidationError rejects caller supplied input
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalidf formats a *ValidationError
func Invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StateTransitionError describes a rejected lifecycle transition
type StateTransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *StateTransitionError) Error() string {
	msg := fmt.Sprintf("invalid state transition for %s: %s -> %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidStateTransition) match
func (e *StateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

func transitionError(entity, from, to, reason string) error {
	return &StateTransitionError{Entity: entity, From: from, To: to, Reason: reason}
}
