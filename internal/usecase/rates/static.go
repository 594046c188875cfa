package rates

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// StaticProvider serves rates from a fixed "FROM/TO" table.
// Inverse pairs are derived when only one direction is configured.
type StaticProvider struct {
	table map[string]decimal.Decimal
}

// NewStaticProvider parses a table of "FROM/TO" -> rate strings
func NewStaticProvider(table map[string]string) (*StaticProvider, error) {
	parsed := make(map[string]decimal.Decimal, len(table))
	for pair, raw := range table {
		parts := strings.Split(pair, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid rate pair %q, want FROM/TO", pair)
		}
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", pair, err)
		}
		if rate.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("rate for %s must be positive", pair)
		}
		parsed[domain.RatePair(strings.ToUpper(parts[0]), strings.ToUpper(parts[1]))] = rate
	}
	return &StaticProvider{table: parsed}, nil
}

// Rate implements domain.RateProvider
func (p *StaticProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := p.table[domain.RatePair(from, to)]; ok {
		return rate, nil
	}
	if inverse, ok := p.table[domain.RatePair(to, from)]; ok {
		return decimal.NewFromInt(1).DivRound(inverse, 10), nil
	}
	return decimal.Zero, fmt.Errorf("%w for %s", domain.ErrRateUnavailable, domain.RatePair(from, to))
}
