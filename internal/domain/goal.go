package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Goal is a long-term savings target owned by the goal store
type Goal struct {
	ID           uuid.UUID
	Name         string
	TargetAmount decimal.Decimal
	Currency     string
	Deadline     time.Time
	CreatedAt    time.Time
}

// Validate ensures the goal adheres to domain rules
func (g *Goal) Validate() error {
	if g.Name == "" {
		return Invalidf("goal name cannot be empty")
	}
	if g.TargetAmount.LessThanOrEqual(decimal.Zero) {
		return Invalidf("goal target amount must be positive")
	}
	if g.Currency == "" {
		return Invalidf("goal currency cannot be empty")
	}
	if g.Deadline.IsZero() {
		return Invalidf("goal must have a deadline")
	}
	return nil
}

// Asset is a holding (account, wallet, fund) whose balance backs one or more goals
type Asset struct {
	ID       uuid.UUID
	Name     string
	Currency string
}

// Validate ensures the asset adheres to domain rules
func (a *Asset) Validate() error {
	if a.Name == "" {
		return Invalidf("asset name cannot be empty")
	}
	if a.Currency == "" {
		return Invalidf("asset currency cannot be empty")
	}
	return nil
}

// AllocationChange records the share of an asset assigned to a goal from Timestamp on.
// History is append-only; the share in effect at t is the latest change at or before t.
type AllocationChange struct {
	ID        uuid.UUID
	AssetID   uuid.UUID
	GoalID    uuid.UUID
	Share     decimal.Decimal // 0..1
	Timestamp time.Time
}

// Validate ensures the change adheres to domain rules
func (c *AllocationChange) Validate() error {
	if c.Share.LessThan(decimal.Zero) || c.Share.GreaterThan(decimal.NewFromInt(1)) {
		return Invalidf("allocation share must be between 0 and 1")
	}
	if c.Timestamp.IsZero() {
		return Invalidf("allocation change must have a timestamp")
	}
	return nil
}

// AllocationKey identifies an (asset, goal) pair
type AllocationKey struct {
	AssetID uuid.UUID
	GoalID  uuid.UUID
}

// SharesAt folds allocation history into the share in effect for every pair at at
// (inclusive). Changes must be ordered oldest first.
func SharesAt(changes []*AllocationChange, at time.Time) map[AllocationKey]decimal.Decimal {
	shares := make(map[AllocationKey]decimal.Decimal)
	for _, c := range changes {
		if c.Timestamp.After(at) {
			continue
		}
		shares[AllocationKey{AssetID: c.AssetID, GoalID: c.GoalID}] = c.Share
	}
	return shares
}
