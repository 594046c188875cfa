package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// assetRepository implements domain.AssetRepository
type assetRepository struct {
	db *DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *DB) domain.AssetRepository {
	return &assetRepository{db: db}
}

// Create inserts a new asset
func (r *assetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("invalid asset: %w", err)
	}

	_, err := r.db.exec(ctx, `INSERT INTO assets (id, name, currency) VALUES (?, ?, ?)`,
		asset.ID, asset.Name, asset.Currency)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

// GetByID retrieves an asset by its ID
func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var asset domain.Asset
	err := r.db.queryRow(ctx, `SELECT id, name, currency FROM assets WHERE id = ?`, id).
		Scan(&asset.ID, &asset.Name, &asset.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

// List retrieves all assets
func (r *assetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := r.db.query(ctx, `SELECT id, name, currency FROM assets ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(&asset.ID, &asset.Name, &asset.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, &asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}
