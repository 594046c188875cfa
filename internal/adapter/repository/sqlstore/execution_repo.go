package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// executionRepository implements domain.ExecutionRepository
type executionRepository struct {
	db *DB
}

// NewExecutionRepository creates a new execution record repository
func NewExecutionRepository(db *DB) domain.ExecutionRepository {
	return &executionRepository{db: db}
}

// Save upserts the record, appends its snapshot when new and stores or discards the
// completion record. Callers wanting atomicity with plan writes run it inside WithinTx.
func (r *executionRepository) Save(ctx context.Context, record *domain.ExecutionRecord) error {
	if !record.Month.Valid() {
		return fmt.Errorf("invalid execution record: bad month %q", record.Month)
	}

	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		tracked, err := json.Marshal(trackedIDs(record.TrackedGoalIDs))
		if err != nil {
			return fmt.Errorf("failed to encode tracked goals: %w", err)
		}

		var snapshotID sql.NullString
		if record.Snapshot != nil {
			snapshotID = sql.NullString{String: record.Snapshot.ID.String(), Valid: true}
			if err := r.appendSnapshot(ctx, record.Snapshot); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO execution_records (month_label, status, started_at, completed_at,
				undo_deadline, tracked_goal_ids, active_snapshot_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (month_label) DO UPDATE SET
				status = excluded.status,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at,
				undo_deadline = excluded.undo_deadline,
				tracked_goal_ids = excluded.tracked_goal_ids,
				active_snapshot_id = excluded.active_snapshot_id,
				updated_at = excluded.updated_at
		`
		_, err = r.db.exec(ctx, query,
			string(record.Month),
			string(record.Status),
			encodeNullTime(record.StartedAt),
			encodeNullTime(record.CompletedAt),
			encodeNullTime(record.UndoDeadline),
			string(tracked),
			snapshotID,
			encodeTime(record.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save execution record: %w", err)
		}

		if record.Completion == nil {
			if _, err := r.db.exec(ctx, `DELETE FROM completion_records WHERE month_label = ?`, string(record.Month)); err != nil {
				return fmt.Errorf("failed to discard completion record: %w", err)
			}
			return nil
		}

		payload, err := json.Marshal(record.Completion)
		if err != nil {
			return fmt.Errorf("failed to encode completion record: %w", err)
		}
		_, err = r.db.exec(ctx, `
			INSERT INTO completion_records (month_label, completed_at, payload)
			VALUES (?, ?, ?)
			ON CONFLICT (month_label) DO UPDATE SET
				completed_at = excluded.completed_at,
				payload = excluded.payload
		`, string(record.Month), encodeTime(record.Completion.CompletedAt), string(payload))
		if err != nil {
			return fmt.Errorf("failed to save completion record: %w", err)
		}
		return nil
	})
}

// appendSnapshot writes the snapshot once; an existing row with the same ID is left untouched
func (r *executionRepository) appendSnapshot(ctx context.Context, snapshot *domain.StartSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = r.db.exec(ctx, `
		INSERT INTO execution_snapshots (id, month_label, captured_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, snapshot.ID, string(snapshot.Month), encodeTime(snapshot.CapturedAt), string(payload))
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// Get retrieves the record of a month with its active snapshot and completion record
func (r *executionRepository) Get(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	query := `
		SELECT month_label, status, started_at, completed_at, undo_deadline,
			tracked_goal_ids, active_snapshot_id, updated_at
		FROM execution_records
		WHERE month_label = ?
	`

	var (
		label, status, trackedStr, updatedStr string
		started, completed, deadline          sql.NullString
		snapshotID                            sql.NullString
	)
	err := r.db.queryRow(ctx, query, string(month)).Scan(
		&label, &status, &started, &completed, &deadline, &trackedStr, &snapshotID, &updatedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("execution record %s: %w", month, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}

	record := &domain.ExecutionRecord{Month: domain.MonthLabel(label)}
	if record.Status, err = domain.ParseExecutionStatus(status); err != nil {
		return nil, err
	}
	if record.StartedAt, err = decodeNullTime(started); err != nil {
		return nil, err
	}
	if record.CompletedAt, err = decodeNullTime(completed); err != nil {
		return nil, err
	}
	if record.UndoDeadline, err = decodeNullTime(deadline); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = decodeTime(updatedStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(trackedStr), &record.TrackedGoalIDs); err != nil {
		return nil, fmt.Errorf("failed to decode tracked goals: %w", err)
	}
	if len(record.TrackedGoalIDs) == 0 {
		record.TrackedGoalIDs = nil
	}

	if snapshotID.Valid {
		if record.Snapshot, err = r.getSnapshot(ctx, snapshotID.String); err != nil {
			return nil, err
		}
	}

	if record.Completion, err = r.getCompletion(ctx, month); err != nil {
		return nil, err
	}
	return record, nil
}

// ListSnapshots returns every snapshot ever captured for the month, oldest first
func (r *executionRepository) ListSnapshots(ctx context.Context, month domain.MonthLabel) ([]*domain.StartSnapshot, error) {
	rows, err := r.db.query(ctx, `
		SELECT payload FROM execution_snapshots
		WHERE month_label = ?
		ORDER BY captured_at, id
	`, string(month))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.StartSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		var snapshot domain.StartSnapshot
		if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func (r *executionRepository) getSnapshot(ctx context.Context, id string) (*domain.StartSnapshot, error) {
	var payload string
	err := r.db.queryRow(ctx, `SELECT payload FROM execution_snapshots WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("snapshot %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	var snapshot domain.StartSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

func (r *executionRepository) getCompletion(ctx context.Context, month domain.MonthLabel) (*domain.CompletionRecord, error) {
	var payload string
	err := r.db.queryRow(ctx, `SELECT payload FROM completion_records WHERE month_label = ?`, string(month)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get completion record: %w", err)
	}
	var completion domain.CompletionRecord
	if err := json.Unmarshal([]byte(payload), &completion); err != nil {
		return nil, fmt.Errorf("failed to decode completion record: %w", err)
	}
	return &completion, nil
}

func trackedIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
