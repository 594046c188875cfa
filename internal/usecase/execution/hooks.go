package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// AttemptAutoStart starts tracking month when now is its first day and it is still
// draft. On any other day, or when already started, it does nothing.
// It goes through the same entry points as a user would.
func (c *Coordinator) AttemptAutoStart(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error) {
	if !month.IsFirstDay(now) {
		return false, nil
	}
	record, err := c.GetRecord(ctx, month)
	if err != nil {
		return false, err
	}
	if record.Status != domain.ExecutionStatusDraft {
		return false, nil
	}

	res, err := c.plans.GetOrCreatePlansForMonth(ctx, nil, month)
	if err != nil {
		return false, fmt.Errorf("failed to prepare plans: %w", err)
	}
	if len(res.Plans) == 0 {
		c.log.Infow("auto start skipped, month has no plans", "month", month)
		return false, nil
	}

	if _, err := c.StartTracking(ctx, month); err != nil {
		return false, err
	}
	c.log.Infow("execution auto-started", "month", month)
	return true, nil
}

// AttemptAutoComplete marks month complete when now is its last day and it is
// executing. On any other day, or in any other state, it does nothing.
func (c *Coordinator) AttemptAutoComplete(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error) {
	if !month.IsLastDay(now) {
		return false, nil
	}
	record, err := c.GetRecord(ctx, month)
	if err != nil {
		return false, err
	}
	if record.Status != domain.ExecutionStatusExecuting {
		return false, nil
	}

	if _, err := c.MarkComplete(ctx, month); err != nil {
		return false, err
	}
	c.log.Infow("execution auto-completed", "month", month)
	return true, nil
}
