package rates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// MockRateProvider is a mock implementation of RateProvider for testing
type MockRateProvider struct {
	mock.Mock
}

func (m *MockRateProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockRateHistoryRepository is a mock implementation of RateHistoryRepository for testing
type MockRateHistoryRepository struct {
	mock.Mock
}

func (m *MockRateHistoryRepository) Add(ctx context.Context, snapshot *domain.RateSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockRateHistoryRepository) GetLatest(ctx context.Context, from, to string, at time.Time) (*domain.RateSnapshot, error) {
	args := m.Called(ctx, from, to, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateSnapshot), args.Error(1)
}

func TestCachedProvider_SameCurrency(t *testing.T) {
	upstream := new(MockRateProvider)
	p := NewCachedProvider(upstream, nil, time.Minute, nil)

	rate, err := p.Rate(context.Background(), "EUR", "eur")
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	upstream.AssertNotCalled(t, "Rate", mock.Anything, mock.Anything, mock.Anything)
}

func TestCachedProvider_CachesAndRecordsHistory(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)
	history := new(MockRateHistoryRepository)

	upstream.On("Rate", ctx, "USD", "EUR").Return(decimal.RequireFromString("0.9"), nil).Once()
	history.On("Add", ctx, mock.MatchedBy(func(s *domain.RateSnapshot) bool {
		return s.From == "USD" && s.To == "EUR" && s.Rate.Equal(decimal.RequireFromString("0.9"))
	})).Return(nil).Once()

	p := NewCachedProvider(upstream, history, time.Minute, nil)

	for i := 0; i < 3; i++ {
		rate, err := p.Rate(ctx, "USD", "EUR")
		require.NoError(t, err)
		assert.Equal(t, "0.9", rate.String())
	}

	upstream.AssertExpectations(t)
	history.AssertExpectations(t)
}

func TestCachedProvider_InvalidateRefetches(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)

	upstream.On("Rate", ctx, "USD", "EUR").Return(decimal.RequireFromString("0.9"), nil).Once()
	upstream.On("Rate", ctx, "USD", "EUR").Return(decimal.RequireFromString("0.92"), nil).Once()

	p := NewCachedProvider(upstream, nil, time.Hour, nil)

	rate, err := p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.9", rate.String())

	p.Invalidate()
	rate, err = p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.92", rate.String(), "a flushed cache asks upstream again")
	upstream.AssertExpectations(t)
}

func TestCachedProvider_FallsBackToStaleCache(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	upstream.On("Rate", ctx, "USD", "EUR").Return(decimal.RequireFromString("0.9"), nil).Once()
	upstream.On("Rate", ctx, "USD", "EUR").Return(decimal.Zero, errors.New("provider down")).Once()

	p := NewCachedProvider(upstream, nil, time.Minute, nil)
	p.now = func() time.Time { return clock }

	_, err := p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err)

	clock = clock.Add(time.Hour) // cache entry is now stale
	rate, err := p.Rate(ctx, "USD", "EUR")
	require.NoError(t, err, "stale value must be served instead of failing")
	assert.Equal(t, "0.9", rate.String())
	upstream.AssertExpectations(t)
}

func TestCachedProvider_FallsBackToHistory(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)
	history := new(MockRateHistoryRepository)
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	upstream.On("Rate", ctx, "GBP", "EUR").Return(decimal.Zero, errors.New("provider down"))
	history.On("GetLatest", ctx, "GBP", "EUR", now).Return(&domain.RateSnapshot{
		From: "GBP", To: "EUR", Rate: decimal.RequireFromString("1.17"), RecordedAt: now.Add(-72 * time.Hour),
	}, nil)

	p := NewCachedProvider(upstream, history, time.Minute, nil)
	p.now = func() time.Time { return now }

	rate, err := p.Rate(ctx, "GBP", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "1.17", rate.String())
}

func TestCachedProvider_NoRateAnywhere(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)
	history := new(MockRateHistoryRepository)

	upstream.On("Rate", ctx, "JPY", "EUR").Return(decimal.Zero, errors.New("provider down"))
	history.On("GetLatest", ctx, "JPY", "EUR", mock.Anything).Return(nil, fmt.Errorf("no rate: %w", domain.ErrNotFound))

	p := NewCachedProvider(upstream, history, time.Minute, nil)

	_, err := p.Rate(ctx, "JPY", "EUR")
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestCachedProvider_RateAtUsesHistoricalRate(t *testing.T) {
	ctx := context.Background()
	upstream := new(MockRateProvider)
	history := new(MockRateHistoryRepository)
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	history.On("GetLatest", ctx, "USD", "EUR", at).Return(&domain.RateSnapshot{
		From: "USD", To: "EUR", Rate: decimal.RequireFromString("0.95"), RecordedAt: at.Add(-time.Hour),
	}, nil)

	p := NewCachedProvider(upstream, history, time.Minute, nil)

	rate, err := p.RateAt(ctx, "USD", "EUR", at)
	require.NoError(t, err)
	assert.Equal(t, "0.95", rate.String())
	upstream.AssertNotCalled(t, "Rate", mock.Anything, mock.Anything, mock.Anything)
}

func TestStaticProvider(t *testing.T) {
	p, err := NewStaticProvider(map[string]string{"eur/usd": "1.25"})
	require.NoError(t, err)

	rate, err := p.Rate(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, "1.25", rate.String())

	inverse, err := p.Rate(context.Background(), "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "0.8", inverse.String())

	_, err = p.Rate(context.Background(), "USD", "GBP")
	assert.ErrorIs(t, err, domain.ErrRateUnavailable)

	_, err = NewStaticProvider(map[string]string{"EURUSD": "1"})
	assert.Error(t, err)
}
