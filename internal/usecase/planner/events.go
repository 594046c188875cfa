package planner

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// GoalChangeKind tells what happened to a goal
type GoalChangeKind string

const (
	GoalCreated GoalChangeKind = "created"
	GoalUpdated GoalChangeKind = "updated"
	GoalDeleted GoalChangeKind = "deleted"
)

// GoalChangedEvent is emitted by the goal store whenever a goal changes
type GoalChangedEvent struct {
	GoalID uuid.UUID
	Kind   GoalChangeKind
}

// Run consumes goal change events until ctx ends or events is closed.
// Updates recalculate the goal's draft plans only; every change drops the plan cache.
func (s *Service) Run(ctx context.Context, events <-chan GoalChangedEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Service) handle(ctx context.Context, ev GoalChangedEvent) {
	s.cache.InvalidateAll()
	if ev.Kind != GoalUpdated {
		return
	}

	updated, err := s.RecalculateDrafts(ctx, ev.GoalID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Errorw("failed to recalculate draft plans", "goal_id", ev.GoalID, "error", err)
		return
	}
	s.log.Debugw("recalculated draft plans", "goal_id", ev.GoalID, "updated", updated)
}
