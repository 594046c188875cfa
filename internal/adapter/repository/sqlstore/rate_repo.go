package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// rateHistoryRepository implements domain.RateHistoryRepository
type rateHistoryRepository struct {
	db *DB
}

// NewRateHistoryRepository creates a new rate history repository
func NewRateHistoryRepository(db *DB) domain.RateHistoryRepository {
	return &rateHistoryRepository{db: db}
}

// Add appends a rate snapshot
func (r *rateHistoryRepository) Add(ctx context.Context, snapshot *domain.RateSnapshot) error {
	query := `
		INSERT INTO rate_history (id, from_currency, to_currency, rate, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.exec(ctx, query,
		snapshot.ID,
		strings.ToUpper(snapshot.From),
		strings.ToUpper(snapshot.To),
		snapshot.Rate.String(),
		encodeTime(snapshot.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rate snapshot: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent rate for a pair recorded at or before at
func (r *rateHistoryRepository) GetLatest(ctx context.Context, from, to string, at time.Time) (*domain.RateSnapshot, error) {
	query := `
		SELECT id, from_currency, to_currency, rate, recorded_at
		FROM rate_history
		WHERE from_currency = ? AND to_currency = ? AND recorded_at <= ?
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	var snapshot domain.RateSnapshot
	var rateStr, recordedStr string

	err := r.db.queryRow(ctx, query, strings.ToUpper(from), strings.ToUpper(to), encodeTime(at)).Scan(
		&snapshot.ID,
		&snapshot.From,
		&snapshot.To,
		&rateStr,
		&recordedStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no rate history for %s: %w", domain.RatePair(from, to), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest rate: %w", err)
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate: %w", err)
	}
	snapshot.Rate = rate

	if snapshot.RecordedAt, err = decodeTime(recordedStr); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
