package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
	"github.com/simaogato/wealthflow-planner/internal/serial"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
	"github.com/simaogato/wealthflow-planner/internal/usecase/progress"
	"github.com/simaogato/wealthflow-planner/internal/usecase/requirement"
)

// PlanCreator is the single entry point through which plans come into existence
type PlanCreator interface {
	GetOrCreatePlansForMonth(ctx context.Context, goals []*domain.Goal, month domain.MonthLabel) (*planner.CreateResult, error)
}

// HoldingsReader captures the balances and shares backing every goal
type HoldingsReader interface {
	Holdings(ctx context.Context, at time.Time) (*requirement.Holdings, error)
}

// ProgressCalculator derives contributions of a record
type ProgressCalculator interface {
	Calculate(ctx context.Context, record *domain.ExecutionRecord, until time.Time) (*progress.Progress, error)
}

// Deps groups the collaborators of the Coordinator
type Deps struct {
	GoalRepo      domain.GoalRepository
	PlanRepo      domain.PlanRepository
	ExecutionRepo domain.ExecutionRepository
	Tx            domain.TxManager
	Holdings      HoldingsReader
	Progress      ProgressCalculator
	Plans         PlanCreator
	Cache         *planner.PlanCache // plan cache of the planner; dropped on every transition
	Queue         *serial.Queue      // shared with the planner
	UndoWindow    time.Duration
	Now           func() time.Time
}

// Coordinator drives the per-month execution lifecycle: draft -> executing -> closed,
// each step undoable until its deadline.
type Coordinator struct {
	goalRepo   domain.GoalRepository
	planRepo   domain.PlanRepository
	execRepo   domain.ExecutionRepository
	tx         domain.TxManager
	holdings   HoldingsReader
	progress   ProgressCalculator
	plans      PlanCreator
	cache      *planner.PlanCache
	queue      *serial.Queue
	undoWindow time.Duration
	now        func() time.Time
	log        *zap.SugaredLogger
}

// NewCoordinator creates a new Coordinator instance
func NewCoordinator(deps Deps, log *zap.SugaredLogger) *Coordinator {
	c := &Coordinator{
		goalRepo:   deps.GoalRepo,
		planRepo:   deps.PlanRepo,
		execRepo:   deps.ExecutionRepo,
		tx:         deps.Tx,
		holdings:   deps.Holdings,
		progress:   deps.Progress,
		plans:      deps.Plans,
		cache:      deps.Cache,
		queue:      deps.Queue,
		undoWindow: deps.UndoWindow,
		now:        deps.Now,
		log:        logger.OrNop(log),
	}
	if c.queue == nil {
		c.queue = serial.New()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// GetRecord returns the execution record of a month. Months that never started
// report an unsaved draft record.
func (c *Coordinator) GetRecord(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	if !month.Valid() {
		return nil, domain.Invalidf("invalid month label %q", month)
	}
	record, err := c.execRepo.Get(ctx, month)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewExecutionRecord(month, c.now().UTC()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}
	return record, nil
}

// GetProgress returns the derived contributions of a month as of now
func (c *Coordinator) GetProgress(ctx context.Context, month domain.MonthLabel) (*progress.Progress, error) {
	record, err := c.GetRecord(ctx, month)
	if err != nil {
		return nil, err
	}
	return c.progress.Calculate(ctx, record, c.now().UTC())
}

// Snapshots returns every start snapshot captured for a month, including ones
// detached by an undo
func (c *Coordinator) Snapshots(ctx context.Context, month domain.MonthLabel) ([]*domain.StartSnapshot, error) {
	return c.execRepo.ListSnapshots(ctx, month)
}

// StartTracking locks the plans of a month into an execution baseline.
// Logic:
//  1. Every plan of the month must be draft
//  2. The snapshot freezes each plan's effective amount, currency and flex state,
//     plus the balance and share of every asset backing the tracked goals
//  3. Plans move to executing, the record to executing with a fresh undo deadline
func (c *Coordinator) StartTracking(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	return c.transition(ctx, month, "started execution tracking", func(ctx context.Context, record *domain.ExecutionRecord, now time.Time) error {
		if record.Status != domain.ExecutionStatusDraft {
			return &domain.StateTransitionError{Entity: "execution", From: string(record.Status), To: string(domain.ExecutionStatusExecuting)}
		}

		plans, err := c.planRepo.ListByMonth(ctx, month)
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
					To:     string(domain.PlanStateExecuting),
					Reason: fmt.Sprintf("plan %s is not draft", p.ID),
				}
			}
		}

		snapshot, err := c.capture(ctx, month, plans, now)
		if err != nil {
			return err
		}
		if err := record.Start(snapshot, c.undoWindow, now); err != nil {
			return err
		}
		return c.movePlans(ctx, plans, domain.PlanStateDraft, domain.PlanStateExecuting, now)
	})
}

// UndoStart returns an executing month to draft before the undo deadline.
// The detached snapshot stays in storage for audit.
func (c *Coordinator) UndoStart(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	return c.transition(ctx, month, "undid execution start", func(ctx context.Context, record *domain.ExecutionRecord, now time.Time) error {
		if err := record.UndoStart(now); err != nil {
			return err
		}
		return c.moveMonth(ctx, month, domain.PlanStateExecuting, domain.PlanStateDraft, now)
	})
}

// MarkComplete freezes the month: contributions are derived up to now, converted at
// current rates and stored with those rates in the completion record.
func (c *Coordinator) MarkComplete(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	return c.transition(ctx, month, "completed execution", func(ctx context.Context, record *domain.ExecutionRecord, now time.Time) error {
		if record.Status != domain.ExecutionStatusExecuting {
			return &domain.StateTransitionError{Entity: "execution", From: string(record.Status), To: string(domain.ExecutionStatusClosed)}
		}

		p, err := c.progress.Calculate(ctx, record, now)
		if err != nil {
			return fmt.Errorf("failed to calculate final progress: %w", err)
		}
		for goalID, ferr := range p.Failed {
			c.log.Warnw("goal completed with incomplete valuation", "month", month, "goal_id", goalID, "error", ferr)
		}

		if err := record.Complete(p.Freeze(now), c.undoWindow, now); err != nil {
			return err
		}
		return c.moveMonth(ctx, month, domain.PlanStateExecuting, domain.PlanStateCompleted, now)
	})
}

// UndoComplete reopens a closed month before the undo deadline, discarding the
// completion record
func (c *Coordinator) UndoComplete(ctx context.Context, month domain.MonthLabel) (*domain.ExecutionRecord, error) {
	return c.transition(ctx, month, "undid execution completion", func(ctx context.Context, record *domain.ExecutionRecord, now time.Time) error {
		if err := record.UndoComplete(now); err != nil {
			return err
		}
		return c.moveMonth(ctx, month, domain.PlanStateCompleted, domain.PlanStateExecuting, now)
	})
}

// transition loads the record, applies fn and saves everything in one queued transaction
func (c *Coordinator) transition(ctx context.Context, month domain.MonthLabel, msg string, fn func(ctx context.Context, record *domain.ExecutionRecord, now time.Time) error) (*domain.ExecutionRecord, error) {
	if !month.Valid() {
		return nil, domain.Invalidf("invalid month label %q", month)
	}

	var record *domain.ExecutionRecord
	err := c.queue.Do(ctx, func(ctx context.Context) error {
		return c.tx.WithinTx(ctx, func(ctx context.Context) error {
			now := c.now().UTC()
			var err error
			record, err = c.execRepo.Get(ctx, month)
			if errors.Is(err, domain.ErrNotFound) {
				record, err = domain.NewExecutionRecord(month, now), nil
			}
			if err != nil {
				return fmt.Errorf("failed to get execution record: %w", err)
			}

			if err := fn(ctx, record, now); err != nil {
				return err
			}
			if err := c.execRepo.Save(ctx, record); err != nil {
				return fmt.Errorf("failed to save execution record: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Invalidate(month)
	}
	c.log.Infow(msg, "month", month, "status", record.Status, "tracked", len(record.TrackedGoalIDs))
	return record, nil
}

func (c *Coordinator) capture(ctx context.Context, month domain.MonthLabel, plans []*domain.MonthlyPlan, now time.Time) (*domain.StartSnapshot, error) {
	goals, err := c.goalRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	names := make(map[uuid.UUID]string, len(goals))
	for _, g := range goals {
		names[g.ID] = g.Name
	}

	holdings, err := c.holdings.Holdings(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to capture holdings: %w", err)
	}

	snapshot := &domain.StartSnapshot{
		ID:         uuid.New(),
		Month:      month,
		CapturedAt: now,
	}
	for _, p := range plans {
		snapshot.Goals = append(snapshot.Goals, domain.SnapshotGoal{
			GoalID:        p.GoalID,
			Name:          names[p.GoalID],
			PlannedAmount: p.EffectiveAmount(),
			Currency:      p.Currency,
			Flex:          p.Flex,
		})
		snapshot.Baselines = append(snapshot.Baselines, holdings.Baselines(p.GoalID)...)
	}
	return snapshot, nil
}

// moveMonth transitions the plans of month currently in from
func (c *Coordinator) moveMonth(ctx context.Context, month domain.MonthLabel, from, to domain.PlanState, now time.Time) error {
	plans, err := c.planRepo.ListByMonth(ctx, month)
	if err != nil {
		return fmt.Errorf("failed to list plans: %w", err)
	}
	return c.movePlans(ctx, plans, from, to, now)
}

func (c *Coordinator) movePlans(ctx context.Context, plans []*domain.MonthlyPlan, from, to domain.PlanState, now time.Time) error {
	for _, p := range plans {
		if p.State != from {
			continue
		}
		if err := p.TransitionTo(to, now); err != nil {
			return err
		}
		if err := c.planRepo.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update plan %s: %w", p.ID, err)
		}
	}
	return nil
}
