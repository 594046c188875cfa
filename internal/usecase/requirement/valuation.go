package requirement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// Holdings is the state of every asset at one instant: balances, shares and currencies
type Holdings struct {
	At       time.Time
	Assets   map[uuid.UUID]*domain.Asset
	Balances map[uuid.UUID]decimal.Decimal
	Shares   map[domain.AllocationKey]decimal.Decimal
}

// Baselines lists the (asset, goal) pairs of goalID with a non-zero share, ordered by asset ID
func (h *Holdings) Baselines(goalID uuid.UUID) []domain.AllocationBaseline {
	var out []domain.AllocationBaseline
	for key, share := range h.Shares {
		if key.GoalID != goalID || share.IsZero() {
			continue
		}
		asset, ok := h.Assets[key.AssetID]
		if !ok {
			continue
		}
		out = append(out, domain.AllocationBaseline{
			AssetID:  key.AssetID,
			GoalID:   goalID,
			Currency: asset.Currency,
			Balance:  h.Balances[key.AssetID],
			Share:    share,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssetID.String() < out[j].AssetID.String()
	})
	return out
}

// ValuationService values goals from the assets allocated to them
type ValuationService struct {
	AssetRepo       domain.AssetRepository
	TransactionRepo domain.TransactionRepository
	AllocationRepo  domain.AllocationRepository
	Rates           domain.RateProvider
}

// NewValuationService creates a new ValuationService instance
func NewValuationService(
	assetRepo domain.AssetRepository,
	transactionRepo domain.TransactionRepository,
	allocationRepo domain.AllocationRepository,
	rates domain.RateProvider,
) *ValuationService {
	return &ValuationService{
		AssetRepo:       assetRepo,
		TransactionRepo: transactionRepo,
		AllocationRepo:  allocationRepo,
		Rates:           rates,
	}
}

// Holdings loads asset balances and allocation shares in effect at at
func (s *ValuationService) Holdings(ctx context.Context, at time.Time) (*Holdings, error) {
	assets, err := s.AssetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	txs, err := s.TransactionRepo.ListUntil(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	changes, err := s.AllocationRepo.ListUntil(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation history: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	return &Holdings{
		At:       at,
		Assets:   byID,
		Balances: domain.BalancesAt(txs, at),
		Shares:   domain.SharesAt(changes, at),
	}, nil
}

// GoalTotal returns the allocated-asset valuation of goal in the goal's currency:
// sum of balance * share * rate over every asset allocated to it.
// It deliberately ignores contribution history.
func (s *ValuationService) GoalTotal(ctx context.Context, h *Holdings, goal *domain.Goal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range h.Baselines(goal.ID) {
		value := b.Balance.Mul(b.Share)
		if value.IsZero() {
			continue
		}
		rate, err := s.Rates.Rate(ctx, b.Currency, goal.Currency)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to value asset %s for goal %s: %w", b.AssetID, goal.ID, err)
		}
		total = total.Add(value.Mul(rate))
	}
	return total.Round(2), nil
}
