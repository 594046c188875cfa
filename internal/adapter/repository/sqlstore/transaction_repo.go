package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `id, asset_id, amount, occurred_at, description`

// Create records a new transaction
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	query := `
		INSERT INTO asset_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.exec(ctx, query,
		tx.ID,
		tx.AssetID,
		tx.Amount.String(),
		encodeTime(tx.Date),
		tx.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// ListUntil returns transactions dated at or before until, oldest first
func (r *transactionRepository) ListUntil(ctx context.Context, until time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM asset_transactions
		WHERE occurred_at <= ?
		ORDER BY occurred_at, id
	`
	return r.list(ctx, query, encodeTime(until))
}

// ListBetween returns transactions with since < date <= until, oldest first
func (r *transactionRepository) ListBetween(ctx context.Context, since, until time.Time) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM asset_transactions
		WHERE occurred_at > ? AND occurred_at <= ?
		ORDER BY occurred_at, id
	`
	return r.list(ctx, query, encodeTime(since), encodeTime(until))
}

func (r *transactionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var amountStr, dateStr string
		if err := rows.Scan(&tx.ID, &tx.AssetID, &amountStr, &dateStr, &tx.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount: %w", err)
		}
		if tx.Date, err = decodeTime(dateStr); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}
