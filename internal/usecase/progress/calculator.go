package progress

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
)

// Epsilon is the smallest asset-currency delta that counts as a contribution
var Epsilon = decimal.New(1, -4)

// HistoricalRates looks up the rate in effect at an instant
type HistoricalRates interface {
	RateAt(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error)
}

// GoalProgress is the contribution state of one tracked goal, in the goal's currency
type GoalProgress struct {
	GoalID      uuid.UUID
	Name        string
	Currency    string
	Planned     decimal.Decimal
	Contributed decimal.Decimal
}

// Ratio is contributed / planned; zero when nothing was planned
func (g GoalProgress) Ratio() decimal.Decimal {
	return ratio(g.Contributed, g.Planned)
}

// Progress is the derived contribution state of one month
type Progress struct {
	Month            domain.MonthLabel
	AsOf             time.Time
	Frozen           bool // read from the completion record
	BaseCurrency     string
	Goals            []GoalProgress
	Events           []domain.ContributionEvent
	TotalPlanned     decimal.Decimal // base currency
	TotalContributed decimal.Decimal // base currency
	Ratio            decimal.Decimal
	Rates            map[string]decimal.Decimal // goal currency -> base, as used for the totals
	Failed           map[uuid.UUID]error        // goals left out of the totals
}

// Freeze turns the progress into a completion record
func (p *Progress) Freeze(completedAt time.Time) *domain.CompletionRecord {
	goals := make([]domain.CompletedGoal, len(p.Goals))
	for i, g := range p.Goals {
		goals[i] = domain.CompletedGoal{
			GoalID:      g.GoalID,
			Name:        g.Name,
			Currency:    g.Currency,
			Planned:     g.Planned,
			Contributed: g.Contributed,
		}
	}
	rates := make(map[string]decimal.Decimal, len(p.Rates))
	for k, v := range p.Rates {
		rates[k] = v
	}
	return &domain.CompletionRecord{
		Month:            p.Month,
		CompletedAt:      completedAt,
		BaseCurrency:     p.BaseCurrency,
		Rates:            rates,
		Goals:            goals,
		TotalPlanned:     p.TotalPlanned,
		TotalContributed: p.TotalContributed,
		Progress:         p.Ratio,
	}
}

// Calculator derives per-goal contributions from balance and allocation deltas.
// No contribution ledger exists; everything is replayed from history.
type Calculator struct {
	AssetRepo       domain.AssetRepository
	TransactionRepo domain.TransactionRepository
	AllocationRepo  domain.AllocationRepository
	Rates           HistoricalRates
	BaseCurrency    string

	log *zap.SugaredLogger
}

// NewCalculator creates a new Calculator instance
func NewCalculator(assetRepo domain.AssetRepository, txRepo domain.TransactionRepository, allocRepo domain.AllocationRepository, rates HistoricalRates, baseCurrency string, log *zap.SugaredLogger) *Calculator {
	return &Calculator{
		AssetRepo:       assetRepo,
		TransactionRepo: txRepo,
		AllocationRepo:  allocRepo,
		Rates:           rates,
		BaseCurrency:    strings.ToUpper(baseCurrency),
		log:             logger.OrNop(log),
	}
}

// Calculate returns the progress of a record as of until.
// Closed records are read from their completion record and never recomputed.
func (c *Calculator) Calculate(ctx context.Context, record *domain.ExecutionRecord, until time.Time) (*Progress, error) {
	if record == nil {
		return nil, errors.New("execution record is required")
	}
	switch {
	case record.Status == domain.ExecutionStatusClosed && record.Completion != nil:
		return fromCompletion(record.Completion), nil
	case record.Status != domain.ExecutionStatusExecuting || record.Snapshot == nil:
		return nil, fmt.Errorf("month %s: %w", record.Month, domain.ErrNotTracking)
	}

	snapshot := record.Snapshot
	start := snapshot.CapturedAt
	if until.Before(start) {
		until = start
	}

	state, err := c.baseline(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	txs, err := c.TransactionRepo.ListBetween(ctx, start, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	changes, err := c.AllocationRepo.ListBetween(ctx, start, until)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation changes: %w", err)
	}

	p := &Progress{
		Month:        record.Month,
		AsOf:         until,
		BaseCurrency: c.BaseCurrency,
		Rates:        make(map[string]decimal.Decimal),
		Failed:       make(map[uuid.UUID]error),
	}
	contributed := make(map[uuid.UUID]decimal.Decimal)
	goalCurrency := make(map[uuid.UUID]string, len(snapshot.Goals))
	for _, g := range snapshot.Goals {
		goalCurrency[g.GoalID] = g.Currency
	}

	emit := func(ev domain.ContributionEvent, assetCurrency string) {
		if !record.Tracks(ev.GoalID) || ev.AssetAmount.Abs().LessThan(Epsilon) {
			return
		}
		rate, err := c.Rates.RateAt(ctx, assetCurrency, goalCurrency[ev.GoalID], ev.Timestamp)
		if err != nil {
			c.log.Warnw("no rate for contribution event, event skipped",
				"goal_id", ev.GoalID, "asset_id", ev.AssetID, "at", ev.Timestamp, "error", err)
			p.Failed[ev.GoalID] = err
			return
		}
		ev.Rate = rate
		ev.GoalAmount = ev.AssetAmount.Mul(rate)
		contributed[ev.GoalID] = contributed[ev.GoalID].Add(ev.GoalAmount)
		p.Events = append(p.Events, ev)
	}

	// Chronological merge; on equal timestamps balance changes apply first
	i, j := 0, 0
	for i < len(txs) || j < len(changes) {
		if j >= len(changes) || (i < len(txs) && !txs[i].Date.After(changes[j].Timestamp)) {
			tx := txs[i]
			i++
			for _, goalID := range state.goalsOf(tx.AssetID) {
				share := state.shares[domain.AllocationKey{AssetID: tx.AssetID, GoalID: goalID}]
				emit(domain.ContributionEvent{
					Timestamp:   tx.Date,
					Source:      domain.ContributionSourceDeposit,
					AssetID:     tx.AssetID,
					GoalID:      goalID,
					AssetAmount: tx.Amount.Mul(share),
				}, state.currency(tx.AssetID))
			}
			state.balances[tx.AssetID] = state.balances[tx.AssetID].Add(tx.Amount)
			continue
		}

		ch := changes[j]
		j++
		key := domain.AllocationKey{AssetID: ch.AssetID, GoalID: ch.GoalID}
		delta := ch.Share.Sub(state.shares[key])
		emit(domain.ContributionEvent{
			Timestamp:   ch.Timestamp,
			Source:      domain.ContributionSourceReallocation,
			AssetID:     ch.AssetID,
			GoalID:      ch.GoalID,
			AssetAmount: delta.Mul(state.balances[ch.AssetID]),
		}, state.currency(ch.AssetID))
		state.shares[key] = ch.Share
	}

	c.total(ctx, p, snapshot, contributed, until)
	return p, nil
}

// total converts per-goal figures into the base currency
func (c *Calculator) total(ctx context.Context, p *Progress, snapshot *domain.StartSnapshot, contributed map[uuid.UUID]decimal.Decimal, at time.Time) {
	p.TotalPlanned = decimal.Zero
	p.TotalContributed = decimal.Zero
	for _, g := range snapshot.Goals {
		gp := GoalProgress{
			GoalID:      g.GoalID,
			Name:        g.Name,
			Currency:    g.Currency,
			Planned:     g.PlannedAmount,
			Contributed: contributed[g.GoalID].Round(2),
		}
		p.Goals = append(p.Goals, gp)

		pair := domain.RatePair(strings.ToUpper(g.Currency), c.BaseCurrency)
		rate, ok := p.Rates[pair]
		if !ok {
			var err error
			if rate, err = c.Rates.RateAt(ctx, g.Currency, c.BaseCurrency, at); err != nil {
				c.log.Warnw("no rate to base currency, goal left out of totals",
					"goal_id", g.GoalID, "pair", pair, "error", err)
				p.Failed[g.GoalID] = err
				continue
			}
			p.Rates[pair] = rate
		}
		p.TotalPlanned = p.TotalPlanned.Add(gp.Planned.Mul(rate))
		p.TotalContributed = p.TotalContributed.Add(gp.Contributed.Mul(rate))
	}
	p.TotalPlanned = p.TotalPlanned.Round(2)
	p.TotalContributed = p.TotalContributed.Round(2)
	p.Ratio = ratio(p.TotalContributed, p.TotalPlanned)
}

// replay is the mutable balance and share state walked forward from the snapshot
type replay struct {
	balances   map[uuid.UUID]decimal.Decimal
	shares     map[domain.AllocationKey]decimal.Decimal
	currencies map[uuid.UUID]string
}

// goalsOf returns the goals holding a non-zero share of an asset, in a stable order
func (r *replay) goalsOf(assetID uuid.UUID) []uuid.UUID {
	var goals []uuid.UUID
	for key, share := range r.shares {
		if key.AssetID == assetID && !share.IsZero() {
			goals = append(goals, key.GoalID)
		}
	}
	sort.Slice(goals, func(a, b int) bool { return goals[a].String() < goals[b].String() })
	return goals
}

func (r *replay) currency(assetID uuid.UUID) string {
	return r.currencies[assetID]
}

// baseline rebuilds the state at execution start. Frozen snapshot baselines win over
// history; pairs the snapshot did not capture come from history up to the start.
func (c *Calculator) baseline(ctx context.Context, snapshot *domain.StartSnapshot) (*replay, error) {
	start := snapshot.CapturedAt

	assets, err := c.AssetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	txs, err := c.TransactionRepo.ListUntil(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	changes, err := c.AllocationRepo.ListUntil(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocation changes: %w", err)
	}

	r := &replay{
		balances:   domain.BalancesAt(txs, start),
		shares:     domain.SharesAt(changes, start),
		currencies: make(map[uuid.UUID]string, len(assets)),
	}
	for _, a := range assets {
		r.currencies[a.ID] = a.Currency
	}
	for _, b := range snapshot.Baselines {
		r.balances[b.AssetID] = b.Balance
		r.shares[domain.AllocationKey{AssetID: b.AssetID, GoalID: b.GoalID}] = b.Share
		if b.Currency != "" {
			r.currencies[b.AssetID] = b.Currency
		}
	}
	return r, nil
}

func fromCompletion(rec *domain.CompletionRecord) *Progress {
	p := &Progress{
		Month:            rec.Month,
		AsOf:             rec.CompletedAt,
		Frozen:           true,
		BaseCurrency:     rec.BaseCurrency,
		TotalPlanned:     rec.TotalPlanned,
		TotalContributed: rec.TotalContributed,
		Ratio:            rec.Progress,
		Rates:            make(map[string]decimal.Decimal, len(rec.Rates)),
		Failed:           make(map[uuid.UUID]error),
	}
	for k, v := range rec.Rates {
		p.Rates[k] = v
	}
	for _, g := range rec.Goals {
		p.Goals = append(p.Goals, GoalProgress{
			GoalID:      g.GoalID,
			Name:        g.Name,
			Currency:    g.Currency,
			Planned:     g.Planned,
			Contributed: g.Contributed,
		})
	}
	return p
}

// ratio is contributed / planned clamped to [0, ∞); over-contribution is kept
func ratio(contributed, planned decimal.Decimal) decimal.Decimal {
	if !planned.IsPositive() {
		return decimal.Zero
	}
	r := contributed.DivRound(planned, 4)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
