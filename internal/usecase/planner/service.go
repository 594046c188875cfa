package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
	"github.com/simaogato/wealthflow-planner/internal/serial"
	"github.com/simaogato/wealthflow-planner/internal/usecase/flex"
	"github.com/simaogato/wealthflow-planner/internal/usecase/requirement"
)

// Valuator values goals from their allocated assets
type Valuator interface {
	Holdings(ctx context.Context, at time.Time) (*requirement.Holdings, error)
	GoalTotal(ctx context.Context, h *requirement.Holdings, goal *domain.Goal) (decimal.Decimal, error)
}

// Deps groups the collaborators of the planner Service
type Deps struct {
	GoalRepo   domain.GoalRepository
	PlanRepo   domain.PlanRepository
	Tx         domain.TxManager
	Valuator   Valuator
	Calculator *requirement.Calculator
	Engine     *flex.Engine
	Queue      *serial.Queue // shared with the execution coordinator
	Cache      *PlanCache
	Now        func() time.Time
}

// Service owns monthly plans: creation, user edits, flex and recalculation.
// Every mutation runs through the serialization queue; reads do not.
type Service struct {
	goalRepo   domain.GoalRepository
	planRepo   domain.PlanRepository
	tx         domain.TxManager
	valuator   Valuator
	calculator *requirement.Calculator
	engine     *flex.Engine
	queue      *serial.Queue
	cache      *PlanCache
	now        func() time.Time
	log        *zap.SugaredLogger
}

// NewService creates a new planner Service
func NewService(deps Deps, log *zap.SugaredLogger) *Service {
	s := &Service{
		goalRepo:   deps.GoalRepo,
		planRepo:   deps.PlanRepo,
		tx:         deps.Tx,
		valuator:   deps.Valuator,
		calculator: deps.Calculator,
		engine:     deps.Engine,
		queue:      deps.Queue,
		cache:      deps.Cache,
		now:        deps.Now,
		log:        logger.OrNop(log),
	}
	if s.queue == nil {
		s.queue = serial.New()
	}
	if s.cache == nil {
		s.cache = NewPlanCache(DefaultCacheTTL)
	}
	if s.engine == nil {
		s.engine = flex.NewEngine()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateResult is the outcome of GetOrCreatePlansForMonth
type CreateResult struct {
	Month   domain.MonthLabel
	Plans   []*domain.MonthlyPlan
	Created int
	Reused  int                 // duplicates found on insert
	Failed  map[uuid.UUID]error // goals whose valuation failed; they have no plan
}

// GetOrCreatePlansForMonth is the only way plans come into existence.
// Logic:
//  1. Existing plans of the month are returned unmodified
//  2. Goals without a plan get a freshly calculated draft plan
//  3. A goal whose valuation fails is skipped and reported; the others proceed
//  4. Every insert of the batch commits together or not at all
//
// goals nil means every goal in the store.
func (s *Service) GetOrCreatePlansForMonth(ctx context.Context, goals []*domain.Goal, month domain.MonthLabel) (*CreateResult, error) {
	if !month.Valid() {
		return nil, domain.Invalidf("invalid month label %q", month)
	}

	result := &CreateResult{Month: month, Failed: make(map[uuid.UUID]error)}
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if goals == nil {
				var err error
				if goals, err = s.goalRepo.List(ctx); err != nil {
					return fmt.Errorf("failed to list goals: %w", err)
				}
			}

			existing, err := s.planRepo.ListByMonth(ctx, month)
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			planned := make(map[uuid.UUID]bool, len(existing))
			for _, p := range existing {
				planned[p.GoalID] = true
			}

			var missing []*domain.Goal
			for _, g := range goals {
				if !planned[g.ID] {
					missing = append(missing, g)
				}
			}
			if len(missing) == 0 {
				result.Plans = existing
				return nil
			}

			now := s.now().UTC()
			holdings, err := s.valuator.Holdings(ctx, now)
			if err != nil {
				return fmt.Errorf("failed to load holdings: %w", err)
			}

			for _, goal := range missing {
				total, err := s.valuator.GoalTotal(ctx, holdings, goal)
				if err != nil {
					s.log.Warnw("goal valuation failed, no plan created",
						"goal_id", goal.ID, "month", month, "error", err)
					result.Failed[goal.ID] = err
					continue
				}

				req := s.calculator.Calculate(goal, total, referenceTime(month, now))
				plan := domain.NewMonthlyPlan(month, req, now)
				if err := s.planRepo.Insert(ctx, plan); err != nil {
					if errors.Is(err, domain.ErrDuplicatePlanDetected) {
						s.log.Warnw("duplicate plan detected, reusing stored plan",
							"goal_id", goal.ID, "month", month)
						result.Reused++
						continue
					}
					return fmt.Errorf("failed to insert plan for goal %s: %w", goal.ID, err)
				}
				result.Created++
			}

			if result.Plans, err = s.planRepo.ListByMonth(ctx, month); err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Created > 0 {
		s.cache.Invalidate(month)
		s.log.Infow("created monthly plans", "month", month, "created", result.Created, "failed", len(result.Failed))
	}
	return result, nil
}

// ListPlans returns the plans of a month, served from the cache while fresh
func (s *Service) ListPlans(ctx context.Context, month domain.MonthLabel) ([]*domain.MonthlyPlan, error) {
	if plans, ok := s.cache.Get(month); ok {
		return plans, nil
	}
	plans, err := s.planRepo.ListByMonth(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	s.cache.Put(month, plans)
	return plans, nil
}

// SetOverride stores a user supplied amount on a plan. It stays until the user changes it.
func (s *Service) SetOverride(ctx context.Context, planID uuid.UUID, amount decimal.Decimal) (*domain.MonthlyPlan, error) {
	return s.mutate(ctx, planID, func(p *domain.MonthlyPlan, now time.Time) error {
		return p.SetOverride(&amount, now)
	})
}

// ClearOverride returns a plan to its calculated amount
func (s *Service) ClearOverride(ctx context.Context, planID uuid.UUID) (*domain.MonthlyPlan, error) {
	return s.mutate(ctx, planID, func(p *domain.MonthlyPlan, now time.Time) error {
		return p.SetOverride(nil, now)
	})
}

// ToggleProtected switches a plan between protected and flexible
func (s *Service) ToggleProtected(ctx context.Context, planID uuid.UUID) (*domain.MonthlyPlan, error) {
	return s.mutate(ctx, planID, func(p *domain.MonthlyPlan, now time.Time) error {
		if p.Flex == domain.FlexStateProtected {
			return p.SetFlex(domain.FlexStateFlexible, now)
		}
		return p.SetFlex(domain.FlexStateProtected, now)
	})
}

// ToggleSkipped switches a plan between skipped and flexible
func (s *Service) ToggleSkipped(ctx context.Context, planID uuid.UUID) (*domain.MonthlyPlan, error) {
	return s.mutate(ctx, planID, func(p *domain.MonthlyPlan, now time.Time) error {
		if p.Flex == domain.FlexStateSkipped {
			return p.SetFlex(domain.FlexStateFlexible, now)
		}
		return p.SetFlex(domain.FlexStateSkipped, now)
	})
}

func (s *Service) mutate(ctx context.Context, planID uuid.UUID, fn func(p *domain.MonthlyPlan, now time.Time) error) (*domain.MonthlyPlan, error) {
	var plan *domain.MonthlyPlan
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		if plan, err = s.planRepo.GetByID(ctx, planID); err != nil {
			return err
		}
		if err := fn(plan, s.now().UTC()); err != nil {
			return err
		}
		return s.planRepo.Update(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(plan.Month)
	return plan, nil
}

// FlexOptions is a slider position requested by the user
type FlexOptions struct {
	Percentage *decimal.Decimal
	Strategy   flex.Strategy
	Budget     *decimal.Decimal
}

// PreviewFlex runs the flex engine over the plans of month without writing anything
func (s *Service) PreviewFlex(ctx context.Context, month domain.MonthLabel, opts FlexOptions) (*flex.Result, error) {
	plans, err := s.ListPlans(ctx, month)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("month %s: %w", month, domain.ErrNoPlans)
	}
	return s.engine.Adjust(s.flexRequest(ctx, plans, opts))
}

// ApplyFlex runs the flex engine and stores the adjusted amounts of flexible plans as
// overrides. Only draft months can be adjusted. An infeasible budget writes nothing.
func (s *Service) ApplyFlex(ctx context.Context, month domain.MonthLabel, opts FlexOptions) (*flex.Result, error) {
	var result *flex.Result
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			plans, err := s.planRepo.ListByMonth(ctx, month)
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}
			if len(plans) == 0 {
				return fmt.Errorf("month %s: %w", month, domain.ErrNoPlans)
			}
			for _, p := range plans {
				if p.State != domain.PlanStateDraft {
					return &domain.StateTransitionError{
						Entity: "plan",
						From:   string(p.State),
						To:     string(p.State),
						Reason: "flex can only be applied to draft plans",
					}
				}
			}

			if result, err = s.engine.Adjust(s.flexRequest(ctx, plans, opts)); err != nil {
				return err
			}
			if err := result.Err(); err != nil {
				return err
			}

			now := s.now().UTC()
			for i, p := range plans {
				if p.Flex != domain.FlexStateFlexible {
					continue
				}
				amount := result.Adjustments[i].Adjusted
				if err := p.SetOverride(&amount, now); err != nil {
					return err
				}
				if err := s.planRepo.Update(ctx, p); err != nil {
					return fmt.Errorf("failed to update plan %s: %w", p.ID, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		if result != nil && result.Infeasible {
			return result, err
		}
		return nil, err
	}

	s.cache.Invalidate(month)
	return result, nil
}

func (s *Service) flexRequest(ctx context.Context, plans []*domain.MonthlyPlan, opts FlexOptions) flex.Request {
	names := make(map[uuid.UUID]string)
	if goals, err := s.goalRepo.List(ctx); err == nil {
		for _, g := range goals {
			names[g.ID] = g.Name
		}
	} else {
		s.log.Warnw("failed to load goal names for flex", "error", err)
	}

	items := make([]flex.Item, len(plans))
	for i, p := range plans {
		name, ok := names[p.GoalID]
		if !ok {
			name = p.GoalID.String()
		}
		items[i] = flex.Item{
			PlanID:           p.ID,
			GoalID:           p.GoalID,
			Name:             name,
			Amount:           p.EffectiveAmount(),
			Calculated:       p.CalculatedRequired,
			Flex:             p.Flex,
			PeriodsRemaining: p.PeriodsRemaining,
			Status:           p.Status,
		}
	}
	return flex.Request{
		Percentage: opts.Percentage,
		Strategy:   opts.Strategy,
		Items:      items,
		Budget:     opts.Budget,
	}
}

// RecalculateDrafts refreshes the calculated fields of every draft plan of a goal.
// Executing and completed plans are never touched: the domain state machine refuses.
func (s *Service) RecalculateDrafts(ctx context.Context, goalID uuid.UUID) (int, error) {
	updated := 0
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			goal, err := s.goalRepo.GetByID(ctx, goalID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}

			drafts, err := s.planRepo.ListDraftsByGoal(ctx, goalID)
			if err != nil {
				return fmt.Errorf("failed to list drafts: %w", err)
			}
			if len(drafts) == 0 {
				return nil
			}

			now := s.now().UTC()
			holdings, err := s.valuator.Holdings(ctx, now)
			if err != nil {
				return fmt.Errorf("failed to load holdings: %w", err)
			}
			total, err := s.valuator.GoalTotal(ctx, holdings, goal)
			if err != nil {
				return fmt.Errorf("failed to value goal %s: %w", goalID, err)
			}

			for _, plan := range drafts {
				req := s.calculator.Calculate(goal, total, referenceTime(plan.Month, now))
				if err := plan.Recalculate(req, now); err != nil {
					return err
				}
				if err := s.planRepo.Update(ctx, plan); err != nil {
					return fmt.Errorf("failed to update plan %s: %w", plan.ID, err)
				}
				updated++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateAll()
	return updated, nil
}

// DeleteStaleDrafts removes draft plans of months before the given month.
// It is only ever triggered by an explicit user cleanup.
func (s *Service) DeleteStaleDrafts(ctx context.Context, before domain.MonthLabel) (int, error) {
	if !before.Valid() {
		return 0, domain.Invalidf("invalid month label %q", before)
	}
	var deleted int
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = s.planRepo.DeleteDraftsBefore(ctx, before)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.cache.InvalidateAll()
	s.log.Infow("deleted stale draft plans", "before", before, "deleted", deleted)
	return deleted, nil
}

// referenceTime is the instant a month's requirement is calculated from:
// now for current and past months, the first of the month for future ones
func referenceTime(month domain.MonthLabel, now time.Time) time.Time {
	if start := month.Start(); start.After(now) {
		return start
	}
	return now
}
