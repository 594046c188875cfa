package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateSnapshot records a conversion rate observed at a point in time
// History is append-only so the rate in effect at any event timestamp can be replayed.
type RateSnapshot struct {
	ID         uuid.UUID
	From       string
	To         string
	Rate       decimal.Decimal // 1 unit of From expressed in To
	RecordedAt time.Time
}

// RatePair formats a currency pair as "FROM/TO"
func RatePair(from, to string) string {
	return from + "/" + to
}
