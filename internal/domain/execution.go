package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionStatus is the lifecycle state of an ExecutionRecord
type ExecutionStatus string

const (
	ExecutionStatusDraft     ExecutionStatus = "draft"
	ExecutionStatusExecuting ExecutionStatus = "executing"
	ExecutionStatusClosed    ExecutionStatus = "closed"
)

// ParseExecutionStatus maps a stored string to an ExecutionStatus
func ParseExecutionStatus(s string) (ExecutionStatus, error) {
	switch ExecutionStatus(s) {
	case ExecutionStatusDraft, ExecutionStatusExecuting, ExecutionStatusClosed:
		return ExecutionStatus(s), nil
	}
	return "", errors.New("invalid execution status: " + s)
}

// ContributionSource classifies a derived contribution event
type ContributionSource string

const (
	ContributionSourceDeposit      ContributionSource = "deposit"
	ContributionSourceReallocation ContributionSource = "reallocation"
)

// SnapshotGoal freezes one plan at the start of execution
type SnapshotGoal struct {
	GoalID        uuid.UUID       `json:"goal_id"`
	Name          string          `json:"name"`
	PlannedAmount decimal.Decimal `json:"planned_amount"`
	Currency      string          `json:"currency"`
	Flex          FlexState       `json:"flex"`
}

// AllocationBaseline freezes an (asset, goal) balance and share at the start of execution
type AllocationBaseline struct {
	AssetID  uuid.UUID       `json:"asset_id"`
	GoalID   uuid.UUID       `json:"goal_id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Share    decimal.Decimal `json:"share"`
}

// StartSnapshot is the immutable execution baseline. It is written once and never
// mutated; undoing a start detaches it from the record but keeps it for audit.
type StartSnapshot struct {
	ID         uuid.UUID            `json:"id"`
	Month      MonthLabel           `json:"month"`
	CapturedAt time.Time            `json:"captured_at"`
	Goals      []SnapshotGoal       `json:"goals"`
	Baselines  []AllocationBaseline `json:"baselines"`
}

// PlannedFor returns the frozen plan of a goal
func (s *StartSnapshot) PlannedFor(goalID uuid.UUID) (SnapshotGoal, bool) {
	for _, g := range s.Goals {
		if g.GoalID == goalID {
			return g, true
		}
	}
	return SnapshotGoal{}, false
}

// CompletedGoal is the frozen outcome for one goal
type CompletedGoal struct {
	GoalID      uuid.UUID       `json:"goal_id"`
	Name        string          `json:"name"`
	Currency    string          `json:"currency"`
	Planned     decimal.Decimal `json:"planned"`
	Contributed decimal.Decimal `json:"contributed"`
}

// CompletionRecord freezes the outcome of a month. Closed months are always read
// from here and never recomputed.
type CompletionRecord struct {
	Month            MonthLabel                 `json:"month"`
	CompletedAt      time.Time                  `json:"completed_at"`
	BaseCurrency     string                     `json:"base_currency"`
	Rates            map[string]decimal.Decimal `json:"rates"`
	Goals            []CompletedGoal            `json:"goals"`
	TotalPlanned     decimal.Decimal            `json:"total_planned"`
	TotalContributed decimal.Decimal            `json:"total_contributed"`
	Progress         decimal.Decimal            `json:"progress"`
}

// ExecutionRecord is the per-month tracking container spanning all goals' plans
type ExecutionRecord struct {
	Month          MonthLabel
	Status         ExecutionStatus
	StartedAt      *time.Time
	CompletedAt    *time.Time
	UndoDeadline   *time.Time
	TrackedGoalIDs []uuid.UUID
	Snapshot       *StartSnapshot
	Completion     *CompletionRecord
	UpdatedAt      time.Time
}

// NewExecutionRecord returns a draft record for month
func NewExecutionRecord(month MonthLabel, now time.Time) *ExecutionRecord {
	return &ExecutionRecord{
		Month:     month,
		Status:    ExecutionStatusDraft,
		UpdatedAt: now,
	}
}

// Tracks reports whether goalID is part of the execution
func (r *ExecutionRecord) Tracks(goalID uuid.UUID) bool {
	for _, id := range r.TrackedGoalIDs {
		if id == goalID {
			return true
		}
	}
	return false
}

// CanUndo reports whether now is strictly before the undo deadline
func (r *ExecutionRecord) CanUndo(now time.Time) bool {
	return r.UndoDeadline != nil && now.Before(*r.UndoDeadline)
}

// Start moves draft -> executing with a freshly captured snapshot
func (r *ExecutionRecord) Start(snapshot *StartSnapshot, window time.Duration, now time.Time) error {
	if r.Status != ExecutionStatusDraft {
		return transitionError("execution", string(r.Status), string(ExecutionStatusExecuting), "")
	}
	if snapshot == nil {
		return errors.New("execution start requires a snapshot")
	}
	deadline := now.Add(window)
	started := now
	r.Status = ExecutionStatusExecuting
	r.StartedAt = &started
	r.UndoDeadline = &deadline
	r.Snapshot = snapshot
	r.TrackedGoalIDs = make([]uuid.UUID, 0, len(snapshot.Goals))
	for _, g := range snapshot.Goals {
		r.TrackedGoalIDs = append(r.TrackedGoalIDs, g.GoalID)
	}
	r.UpdatedAt = now
	return nil
}

// UndoStart moves executing -> draft before the undo deadline
func (r *ExecutionRecord) UndoStart(now time.Time) error {
	if r.Status != ExecutionStatusExecuting {
		return transitionError("execution", string(r.Status), string(ExecutionStatusDraft), "")
	}
	if !r.CanUndo(now) {
		return transitionError("execution", string(r.Status), string(ExecutionStatusDraft), "undo window has expired")
	}
	r.Status = ExecutionStatusDraft
	r.StartedAt = nil
	r.UndoDeadline = nil
	r.Snapshot = nil
	r.TrackedGoalIDs = nil
	r.UpdatedAt = now
	return nil
}

// Complete moves executing -> closed with a frozen completion record
func (r *ExecutionRecord) Complete(completion *CompletionRecord, window time.Duration, now time.Time) error {
	if r.Status != ExecutionStatusExecuting {
		return transitionError("execution", string(r.Status), string(ExecutionStatusClosed), "")
	}
	if completion == nil {
		return errors.New("execution completion requires a completion record")
	}
	deadline := now.Add(window)
	completed := now
	r.Status = ExecutionStatusClosed
	r.CompletedAt = &completed
	r.UndoDeadline = &deadline
	r.Completion = completion
	r.UpdatedAt = now
	return nil
}

// UndoComplete moves closed -> executing before the undo deadline, discarding the
// completion record. The start undo window does not reopen.
func (r *ExecutionRecord) UndoComplete(now time.Time) error {
	if r.Status != ExecutionStatusClosed {
		return transitionError("execution", string(r.Status), string(ExecutionStatusExecuting), "")
	}
	if !r.CanUndo(now) {
		return transitionError("execution", string(r.Status), string(ExecutionStatusExecuting), "undo window has expired")
	}
	r.Status = ExecutionStatusExecuting
	r.CompletedAt = nil
	r.UndoDeadline = nil
	r.Completion = nil
	r.UpdatedAt = now
	return nil
}

// ContributionEvent is a contribution derived from balance or share deltas.
// It is never persisted.
type ContributionEvent struct {
	Timestamp   time.Time
	Source      ContributionSource
	AssetID     uuid.UUID
	GoalID      uuid.UUID
	AssetAmount decimal.Decimal // asset currency
	GoalAmount  decimal.Decimal // goal currency
	Rate        decimal.Decimal
}
