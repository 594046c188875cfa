package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction represents a balance change of a single asset
// The balance of an asset at time t is the sum of its transactions dated at or before t.
type Transaction struct {
	ID          uuid.UUID
	AssetID     uuid.UUID
	Amount      decimal.Decimal // SIGNED, asset currency (deposit > 0, withdrawal < 0)
	Date        time.Time
	Description string
}

// Validate ensures the transaction adheres to domain rules
func (t *Transaction) Validate() error {
	if t.AssetID == uuid.Nil {
		return Invalidf("transaction must reference an asset")
	}
	if t.Amount.IsZero() {
		return Invalidf("transaction amount cannot be zero")
	}
	if t.Date.IsZero() {
		return Invalidf("transaction must have a date")
	}
	return nil
}

// BalancesAt folds transactions into per-asset balances as of at (inclusive)
func BalancesAt(txs []*Transaction, at time.Time) map[uuid.UUID]decimal.Decimal {
	balances := make(map[uuid.UUID]decimal.Decimal)
	for _, tx := range txs {
		if tx.Date.After(at) {
			continue
		}
		balances[tx.AssetID] = balances[tx.AssetID].Add(tx.Amount)
	}
	return balances
}
