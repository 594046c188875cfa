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

// goalRepository implements domain.GoalRepository
type goalRepository struct {
	db *DB
}

// NewGoalRepository creates a new goal repository
func NewGoalRepository(db *DB) domain.GoalRepository {
	return &goalRepository{db: db}
}

const goalColumns = `id, name, target_amount, currency, deadline, created_at`

// Create inserts a new goal
func (r *goalRepository) Create(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}

	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.exec(ctx, query,
		goal.ID,
		goal.Name,
		goal.TargetAmount.String(),
		goal.Currency,
		encodeTime(goal.Deadline),
		encodeTime(goal.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetByID retrieves a goal by its ID
func (r *goalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = ?`

	goal, err := scanGoal(r.db.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// List retrieves all goals ordered by creation
func (r *goalRepository) List(ctx context.Context) ([]*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals ORDER BY created_at, id`

	rows, err := r.db.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return goals, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(s scanner) (*domain.Goal, error) {
	var goal domain.Goal
	var targetStr, deadlineStr, createdStr string

	if err := s.Scan(&goal.ID, &goal.Name, &targetStr, &goal.Currency, &deadlineStr, &createdStr); err != nil {
		return nil, err
	}

	target, err := decimal.NewFromString(targetStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target_amount: %w", err)
	}
	goal.TargetAmount = target

	if goal.Deadline, err = decodeTime(deadlineStr); err != nil {
		return nil, err
	}
	if goal.CreatedAt, err = decodeTime(createdStr); err != nil {
		return nil, err
	}
	return &goal, nil
}
