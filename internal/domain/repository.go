package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoalRepository defines read access to the goal store
type GoalRepository interface {
	// GetByID retrieves a goal by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Goal, error)

	// List retrieves all goals
	List(ctx context.Context) ([]*Goal, error)

	// Create creates a new goal
	Create(ctx context.Context, goal *Goal) error
}

// AssetRepository defines read access to the asset store
type AssetRepository interface {
	// GetByID retrieves an asset by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Asset, error)

	// List retrieves all assets
	List(ctx context.Context) ([]*Asset, error)

	// Create creates a new asset
	Create(ctx context.Context, asset *Asset) error
}

// TransactionRepository exposes the chronological transaction feed
type TransactionRepository interface {
	// Create records a new transaction
	Create(ctx context.Context, tx *Transaction) error

	// ListUntil returns transactions dated at or before until, oldest first
	ListUntil(ctx context.Context, until time.Time) ([]*Transaction, error)

	// ListBetween returns transactions with since < date <= until, oldest first
	ListBetween(ctx context.Context, since, until time.Time) ([]*Transaction, error)
}

// AllocationRepository exposes the append-only allocation history
type AllocationRepository interface {
	// Record appends an allocation change
	Record(ctx context.Context, change *AllocationChange) error

	// ListUntil returns changes at or before until, oldest first
	ListUntil(ctx context.Context, until time.Time) ([]*AllocationChange, error)

	// ListBetween returns changes with since < timestamp <= until, oldest first
	ListBetween(ctx context.Context, since, until time.Time) ([]*AllocationChange, error)
}

// RateHistoryRepository stores observed conversion rates
type RateHistoryRepository interface {
	// Add appends a rate snapshot
	Add(ctx context.Context, snapshot *RateSnapshot) error

	// GetLatest returns the latest snapshot for the pair recorded at or before at
	GetLatest(ctx context.Context, from, to string, at time.Time) (*RateSnapshot, error)
}

// PlanRepository defines persistence for monthly plans
type PlanRepository interface {
	// GetByID retrieves a plan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*MonthlyPlan, error)

	// ListByMonth retrieves all plans of a month
	ListByMonth(ctx context.Context, month MonthLabel) ([]*MonthlyPlan, error)

	// ListDraftsByGoal retrieves every draft plan of a goal, across months
	ListDraftsByGoal(ctx context.Context, goalID uuid.UUID) ([]*MonthlyPlan, error)

	// Insert stores a new plan. It returns an error wrapping ErrDuplicatePlanDetected
	// when a plan for the same (goal, month) already exists.
	Insert(ctx context.Context, plan *MonthlyPlan) error

	// Update persists the mutable fields of an existing plan
	Update(ctx context.Context, plan *MonthlyPlan) error

	// DeleteDraftsBefore removes draft plans of months earlier than month
	DeleteDraftsBefore(ctx context.Context, month MonthLabel) (int, error)
}

// ExecutionRepository defines persistence for execution records
type ExecutionRepository interface {
	// Get retrieves the record of a month, wrapping ErrNotFound when absent
	Get(ctx context.Context, month MonthLabel) (*ExecutionRecord, error)

	// Save upserts the record. A snapshot is appended the first time it is seen and
	// never rewritten; the completion record is stored or discarded to match the record.
	Save(ctx context.Context, record *ExecutionRecord) error

	// ListSnapshots returns every snapshot ever captured for the month, oldest first
	ListSnapshots(ctx context.Context, month MonthLabel) ([]*StartSnapshot, error)
}

// TxManager runs fn inside a single storage transaction. Repositories called with
// the ctx passed to fn take part in that transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RateProvider is the external valuation/rate lookup
type RateProvider interface {
	// Rate returns how many units of to one unit of from is worth
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
