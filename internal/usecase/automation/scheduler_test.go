package automation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

type MockHooks struct {
	mock.Mock
}

func (m *MockHooks) AttemptAutoStart(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error) {
	args := m.Called(ctx, month, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockHooks) AttemptAutoComplete(ctx context.Context, month domain.MonthLabel, now time.Time) (bool, error) {
	args := m.Called(ctx, month, now)
	return args.Bool(0), args.Error(1)
}

func TestCheckOnce_RunsHooksOncePerDay(t *testing.T) {
	ctx := context.Background()
	hooks := new(MockHooks)
	s := New(Config{Enabled: true, Interval: time.Minute}, hooks, nil)

	first := time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC)
	s.now = func() time.Time { return first }
	hooks.On("AttemptAutoStart", ctx, domain.MonthLabel("2025-03"), first).Return(true, nil).Once()
	hooks.On("AttemptAutoComplete", ctx, domain.MonthLabel("2025-03"), first).Return(false, nil).Once()

	s.CheckOnce(ctx)

	// same day again: nothing runs
	later := first.Add(3 * time.Hour)
	s.now = func() time.Time { return later }
	s.CheckOnce(ctx)

	hooks.AssertExpectations(t)
	st := s.Status()
	assert.Equal(t, int64(2), st.Checks)
	assert.Equal(t, []domain.MonthLabel{"2025-03"}, st.Started)
	assert.Empty(t, st.Completed)
}

func TestCheckOnce_RetriesFailedHook(t *testing.T) {
	ctx := context.Background()
	hooks := new(MockHooks)
	s := New(Config{Enabled: true}, hooks, nil)

	last := time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return last }
	hooks.On("AttemptAutoStart", ctx, domain.MonthLabel("2025-03"), last).Return(false, nil).Once()
	hooks.On("AttemptAutoComplete", ctx, domain.MonthLabel("2025-03"), last).Return(false, errors.New("db locked")).Once()
	s.CheckOnce(ctx)
	assert.Equal(t, "db locked", s.Status().LastError)

	retry := last.Add(time.Hour)
	s.now = func() time.Time { return retry }
	hooks.On("AttemptAutoComplete", ctx, domain.MonthLabel("2025-03"), retry).Return(true, nil).Once()
	s.CheckOnce(ctx)

	hooks.AssertExpectations(t)
	assert.Equal(t, []domain.MonthLabel{"2025-03"}, s.Status().Completed)
}

func TestRun_DisabledReturnsImmediately(t *testing.T) {
	hooks := new(MockHooks)
	s := New(Config{Enabled: false}, hooks, nil)

	assert.NoError(t, s.Run(context.Background()))
	hooks.AssertNotCalled(t, "AttemptAutoStart", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_StopsOnCancel(t *testing.T) {
	hooks := new(MockHooks)
	hooks.On("AttemptAutoStart", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	hooks.On("AttemptAutoComplete", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	s := New(Config{Enabled: true, Interval: time.Hour}, hooks, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return s.Status().Checks == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	s := New(Config{Enabled: true}, new(MockHooks), nil)
	assert.Equal(t, DefaultInterval, s.cfg.Interval)
}
