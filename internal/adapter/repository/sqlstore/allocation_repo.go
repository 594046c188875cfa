package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// allocationRepository implements domain.AllocationRepository
type allocationRepository struct {
	db *DB
}

// NewAllocationRepository creates a new allocation history repository
func NewAllocationRepository(db *DB) domain.AllocationRepository {
	return &allocationRepository{db: db}
}

const allocationColumns = `id, asset_id, goal_id, share, changed_at`

// Record appends an allocation change
func (r *allocationRepository) Record(ctx context.Context, change *domain.AllocationChange) error {
	if err := change.Validate(); err != nil {
		return fmt.Errorf("invalid allocation change: %w", err)
	}

	query := `
		INSERT INTO allocation_history (` + allocationColumns + `)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.exec(ctx, query,
		change.ID,
		change.AssetID,
		change.GoalID,
		change.Share.String(),
		encodeTime(change.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation change: %w", err)
	}
	return nil
}

// ListUntil returns changes at or before until, oldest first
func (r *allocationRepository) ListUntil(ctx context.Context, until time.Time) ([]*domain.AllocationChange, error) {
	query := `
		SELECT ` + allocationColumns + `
		FROM allocation_history
		WHERE changed_at <= ?
		ORDER BY changed_at, id
	`
	return r.list(ctx, query, encodeTime(until))
}

// ListBetween returns changes with since < timestamp <= until, oldest first
func (r *allocationRepository) ListBetween(ctx context.Context, since, until time.Time) ([]*domain.AllocationChange, error) {
	query := `
		SELECT ` + allocationColumns + `
		FROM allocation_history
		WHERE changed_at > ? AND changed_at <= ?
		ORDER BY changed_at, id
	`
	return r.list(ctx, query, encodeTime(since), encodeTime(until))
}

func (r *allocationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.AllocationChange, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation history: %w", err)
	}
	defer rows.Close()

	var changes []*domain.AllocationChange
	for rows.Next() {
		var c domain.AllocationChange
		var shareStr, changedStr string
		if err := rows.Scan(&c.ID, &c.AssetID, &c.GoalID, &shareStr, &changedStr); err != nil {
			return nil, fmt.Errorf("failed to scan allocation change: %w", err)
		}
		if c.Share, err = decimal.NewFromString(shareStr); err != nil {
			return nil, fmt.Errorf("failed to parse share: %w", err)
		}
		if c.Timestamp, err = decodeTime(changedStr); err != nil {
			return nil, err
		}
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation history: %w", err)
	}
	return changes, nil
}
