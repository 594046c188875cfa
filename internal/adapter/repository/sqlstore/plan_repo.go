package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// planRepository implements domain.PlanRepository
type planRepository struct {
	db *DB
}

// NewPlanRepository creates a new monthly plan repository
func NewPlanRepository(db *DB) domain.PlanRepository {
	return &planRepository{db: db}
}

const planColumns = `id, goal_id, month_label, calculated_required, remaining, periods_remaining,
	currency, status, override_amount, state, flex_state, needs_review,
	created_at, modified_at, calculated_at`

// Insert stores a new plan. The (goal_id, month_label) unique constraint turns a
// concurrent or stale duplicate into ErrDuplicatePlanDetected instead of a second row.
func (r *planRepository) Insert(ctx context.Context, plan *domain.MonthlyPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	query := `
		INSERT INTO monthly_plans (` + planColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (goal_id, month_label) DO NOTHING
	`
	res, err := r.db.exec(ctx, query,
		plan.ID,
		plan.GoalID,
		string(plan.Month),
		plan.CalculatedRequired.String(),
		plan.Remaining.String(),
		plan.PeriodsRemaining,
		plan.Currency,
		string(plan.Status),
		encodeOverride(plan.Override),
		string(plan.State),
		string(plan.Flex),
		boolToInt(plan.NeedsReview),
		encodeTime(plan.CreatedAt),
		encodeTime(plan.ModifiedAt),
		encodeTime(plan.CalculatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("goal %s month %s: %w", plan.GoalID, plan.Month, domain.ErrDuplicatePlanDetected)
	}
	return nil
}

// Update persists the mutable fields of an existing plan
func (r *planRepository) Update(ctx context.Context, plan *domain.MonthlyPlan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	query := `
		UPDATE monthly_plans
		SET calculated_required = ?, remaining = ?, periods_remaining = ?, currency = ?,
			status = ?, override_amount = ?, state = ?, flex_state = ?, needs_review = ?,
			modified_at = ?, calculated_at = ?
		WHERE id = ?
	`
	res, err := r.db.exec(ctx, query,
		plan.CalculatedRequired.String(),
		plan.Remaining.String(),
		plan.PeriodsRemaining,
		plan.Currency,
		string(plan.Status),
		encodeOverride(plan.Override),
		string(plan.State),
		string(plan.Flex),
		boolToInt(plan.NeedsReview),
		encodeTime(plan.ModifiedAt),
		encodeTime(plan.CalculatedAt),
		plan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plan %s: %w", plan.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a plan by its ID
func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MonthlyPlan, error) {
	query := `SELECT ` + planColumns + ` FROM monthly_plans WHERE id = ?`

	plan, err := scanPlan(r.db.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

// ListByMonth retrieves all plans of a month ordered by creation
func (r *planRepository) ListByMonth(ctx context.Context, month domain.MonthLabel) ([]*domain.MonthlyPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM monthly_plans
		WHERE month_label = ?
		ORDER BY created_at, goal_id
	`
	return r.list(ctx, query, string(month))
}

// ListDraftsByGoal retrieves every draft plan of a goal, across months
func (r *planRepository) ListDraftsByGoal(ctx context.Context, goalID uuid.UUID) ([]*domain.MonthlyPlan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM monthly_plans
		WHERE goal_id = ? AND state = ?
		ORDER BY month_label
	`
	return r.list(ctx, query, goalID, string(domain.PlanStateDraft))
}

// DeleteDraftsBefore removes draft plans of months earlier than month.
// Month labels are "YYYY-MM" so they compare lexically.
func (r *planRepository) DeleteDraftsBefore(ctx context.Context, month domain.MonthLabel) (int, error) {
	res, err := r.db.exec(ctx, `DELETE FROM monthly_plans WHERE state = ? AND month_label < ?`,
		string(domain.PlanStateDraft), string(month))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(affected), nil
}

func (r *planRepository) list(ctx context.Context, query string, args ...any) ([]*domain.MonthlyPlan, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.MonthlyPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}
	return plans, nil
}

func scanPlan(s scanner) (*domain.MonthlyPlan, error) {
	var plan domain.MonthlyPlan
	var (
		month, calculatedStr, remainingStr, status, state, flex string
		createdStr, modifiedStr, calculatedAtStr                string
		override                                                sql.NullString
		needsReview                                             int
	)

	err := s.Scan(
		&plan.ID,
		&plan.GoalID,
		&month,
		&calculatedStr,
		&remainingStr,
		&plan.PeriodsRemaining,
		&plan.Currency,
		&status,
		&override,
		&state,
		&flex,
		&needsReview,
		&createdStr,
		&modifiedStr,
		&calculatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if plan.Month, err = domain.ParseMonthLabel(month); err != nil {
		// a corrupt row is a storage fault, not a validation failure
		return nil, fmt.Errorf("failed to parse month: %v", err)
	}
	if plan.CalculatedRequired, err = decimal.NewFromString(calculatedStr); err != nil {
		return nil, fmt.Errorf("failed to parse calculated_required: %w", err)
	}
	if plan.Remaining, err = decimal.NewFromString(remainingStr); err != nil {
		return nil, fmt.Errorf("failed to parse remaining: %w", err)
	}
	if override.Valid {
		v, err := decimal.NewFromString(override.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse override_amount: %w", err)
		}
		plan.Override = &v
	}
	plan.Status = domain.RequirementStatus(status)
	if plan.State, err = domain.ParsePlanState(state); err != nil {
		return nil, err
	}
	if plan.Flex, err = domain.ParseFlexState(flex); err != nil {
		return nil, err
	}
	plan.NeedsReview = needsReview != 0
	if plan.CreatedAt, err = decodeTime(createdStr); err != nil {
		return nil, err
	}
	if plan.ModifiedAt, err = decodeTime(modifiedStr); err != nil {
		return nil, err
	}
	if plan.CalculatedAt, err = decodeTime(calculatedAtStr); err != nil {
		return nil, err
	}
	return &plan, nil
}

func encodeOverride(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
