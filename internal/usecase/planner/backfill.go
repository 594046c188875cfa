package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// LegacyPlan is a plan record from an older store whose month may be missing or
// written in another format
type LegacyPlan struct {
	GoalID    uuid.UUID
	MonthHint string
	Override  *decimal.Decimal
	Flex      string
}

// ImportResult is the outcome of ImportLegacyPlans
type ImportResult struct {
	Imported   []*domain.MonthlyPlan
	Skipped    int // a plan already existed for the goal and month
	NeedReview int
	Failed     map[uuid.UUID]error
}

var monthHintLayouts = []string{"2006-01", "2006-01-02", time.RFC3339, "01/2006", "January 2006", "Jan 2006"}

// inferMonth reads a month from a legacy hint
func inferMonth(hint string) (domain.MonthLabel, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return "", fmt.Errorf("%w: no month recorded", domain.ErrCalculationAmbiguous)
	}
	for _, layout := range monthHintLayouts {
		if t, err := time.Parse(layout, hint); err == nil {
			return domain.MonthOf(t), nil
		}
	}
	return "", fmt.Errorf("%w: cannot read month from %q", domain.ErrCalculationAmbiguous, hint)
}

// ImportLegacyPlans backfills plans from legacy records. A record whose month cannot be
// inferred is still imported into the current month, flagged NeedsReview.
// The whole import commits together.
func (s *Service) ImportLegacyPlans(ctx context.Context, records []LegacyPlan) (*ImportResult, error) {
	result := &ImportResult{Failed: make(map[uuid.UUID]error)}

	err := s.queue.Do(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			now := s.now().UTC()
			holdings, err := s.valuator.Holdings(ctx, now)
			if err != nil {
				return fmt.Errorf("failed to load holdings: %w", err)
			}

			for _, rec := range records {
				goal, err := s.goalRepo.GetByID(ctx, rec.GoalID)
				if err != nil {
					result.Failed[rec.GoalID] = err
					continue
				}

				month, needsReview := domain.MonthOf(now), false
				if inferred, err := inferMonth(rec.MonthHint); err == nil {
					month = inferred
				} else {
					s.log.Warnw("legacy plan month is ambiguous, defaulting to current month",
						"goal_id", rec.GoalID, "hint", rec.MonthHint, "month", month, "error", err)
					needsReview = true
				}

				total, err := s.valuator.GoalTotal(ctx, holdings, goal)
				if err != nil {
					result.Failed[rec.GoalID] = err
					continue
				}

				plan := domain.NewMonthlyPlan(month, s.calculator.Calculate(goal, total, referenceTime(month, now)), now)
				plan.NeedsReview = needsReview
				if rec.Override != nil {
					if err := plan.SetOverride(rec.Override, now); err != nil {
						result.Failed[rec.GoalID] = err
						continue
					}
				}
				if rec.Flex != "" {
					state, err := domain.ParseFlexState(rec.Flex)
					if err != nil {
						result.Failed[rec.GoalID] = err
						continue
					}
					plan.Flex = state
				}

				if err := s.planRepo.Insert(ctx, plan); err != nil {
					if errors.Is(err, domain.ErrDuplicatePlanDetected) {
						s.log.Warnw("duplicate plan detected during import, keeping stored plan",
							"goal_id", rec.GoalID, "month", month)
						result.Skipped++
						continue
					}
					return fmt.Errorf("failed to insert plan for goal %s: %w", rec.GoalID, err)
				}
				if needsReview {
					result.NeedReview++
				}
				result.Imported = append(result.Imported, plan)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateAll()
	return result, nil
}
