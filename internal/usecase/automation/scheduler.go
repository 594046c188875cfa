package automation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
)

// DefaultInterval is used when Config.Interval is too small
const DefaultInterval = time.Hour

// Hooks are the idempotent automation entry points of the execution coordinator
type Hooks interface {
	AttemptAutoStart(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error)
	AttemptAutoComplete(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error)
}

// Config controls the scheduler
type Config struct {
	Enabled  bool
	Interval time.Duration
}

// Status is a point-in-time view of the scheduler
type Status struct {
	Checks    int64
	LastCheck time.Time
	LastError string
	Started   []domain.MonthLabel
	Completed []domain.MonthLabel
}

// Scheduler calls the automation hooks for the current month. Each hook runs at most
// once per UTC day once it has succeeded, so a user undo later that day is not
// overridden by the next tick.
type Scheduler struct {
	cfg   Config
	hooks Hooks
	now   func() time.Time
	log   *zap.SugaredLogger

	mu           sync.Mutex
	status       Status
	lastStart    string
	lastComplete string
}

// New returns a new scheduler with the provided config
func New(cfg Config, hooks Hooks, log *zap.SugaredLogger) *Scheduler {
	if cfg.Interval < time.Second {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		cfg:   cfg,
		hooks: hooks,
		now:   time.Now,
		log:   logger.OrNop(log),
	}
}

// Run checks immediately and then on every tick until ctx is canceled.
// A disabled scheduler returns at once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Infow("automation disabled")
		return nil
	}
	s.log.Infow("automation started", "interval", s.cfg.Interval.String())

	s.CheckOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs both hooks for the month containing now
func (s *Scheduler) CheckOnce(ctx context.Context) {
	now := s.now().UTC()
	month := domain.MonthOf(now)
	day := now.Format("2006-01-02")

	s.mu.Lock()
	s.status.Checks++
	s.status.LastCheck = now
	runStart := s.lastStart != day
	runComplete := s.lastComplete != day
	s.mu.Unlock()

	if runStart {
		started, err := s.hooks.AttemptAutoStart(ctx, month, now)
		s.record(err, func() {
			s.lastStart = day
			if started {
				s.status.Started = append(s.status.Started, month)
			}
		})
		if err != nil {
			s.log.Errorw("auto start failed", "month", month, "error", err)
		}
	}

	if runComplete {
		completed, err := s.hooks.AttemptAutoComplete(ctx, month, now)
		s.record(err, func() {
			s.lastComplete = day
			if completed {
				s.status.Completed = append(s.status.Completed, month)
			}
		})
		if err != nil {
			s.log.Errorw("auto complete failed", "month", month, "error", err)
		}
	}
}

func (s *Scheduler) record(err error, onSuccess func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	onSuccess()
}

// Status returns a copy of the scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Started = append([]domain.MonthLabel(nil), s.status.Started...)
	st.Completed = append([]domain.MonthLabel(nil), s.status.Completed...)
	return st
}
