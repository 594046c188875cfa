package requirement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/wealthflow-planner/internal/domain"
)

// MockAssetRepository is a mock implementation of AssetRepository for testing
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of TransactionRepository for testing
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListUntil(ctx context.Context, until time.Time) ([]*domain.Transaction, error) {
	args := m.Called(ctx, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListBetween(ctx context.Context, since, until time.Time) ([]*domain.Transaction, error) {
	args := m.Called(ctx, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

// MockAllocationRepository is a mock implementation of AllocationRepository for testing
type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) Record(ctx context.Context, change *domain.AllocationChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockAllocationRepository) ListUntil(ctx context.Context, until time.Time) ([]*domain.AllocationChange, error) {
	args := m.Called(ctx, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AllocationChange), args.Error(1)
}

func (m *MockAllocationRepository) ListBetween(ctx context.Context, since, until time.Time) ([]*domain.AllocationChange, error) {
	args := m.Called(ctx, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AllocationChange), args.Error(1)
}

// MockRateProvider is a mock implementation of RateProvider for testing
type MockRateProvider struct {
	mock.Mock
}

func (m *MockRateProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func TestGoalTotal_ConvertsAllocatedShares(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	assetRepo := new(MockAssetRepository)
	txRepo := new(MockTransactionRepository)
	allocRepo := new(MockAllocationRepository)
	rates := new(MockRateProvider)

	savings := &domain.Asset{ID: uuid.New(), Name: "Savings", Currency: "EUR"}
	broker := &domain.Asset{ID: uuid.New(), Name: "Broker", Currency: "USD"}
	house := newGoal("10000", now.AddDate(1, 0, 0))
	car := newGoal("5000", now.AddDate(1, 0, 0))

	assetRepo.On("List", ctx).Return([]*domain.Asset{savings, broker}, nil)
	txRepo.On("ListUntil", ctx, now).Return([]*domain.Transaction{
		{ID: uuid.New(), AssetID: savings.ID, Amount: decimal.NewFromInt(1000), Date: now.AddDate(0, -2, 0)},
		{ID: uuid.New(), AssetID: savings.ID, Amount: decimal.NewFromInt(-200), Date: now.AddDate(0, -1, 0)},
		{ID: uuid.New(), AssetID: broker.ID, Amount: decimal.NewFromInt(500), Date: now.AddDate(0, -1, 0)},
	}, nil)
	allocRepo.On("ListUntil", ctx, now).Return([]*domain.AllocationChange{
		{ID: uuid.New(), AssetID: savings.ID, GoalID: house.ID, Share: decimal.NewFromInt(1), Timestamp: now.AddDate(0, -3, 0)},
		{ID: uuid.New(), AssetID: savings.ID, GoalID: house.ID, Share: decimal.RequireFromString("0.5"), Timestamp: now.AddDate(0, -1, 0)},
		{ID: uuid.New(), AssetID: savings.ID, GoalID: car.ID, Share: decimal.RequireFromString("0.5"), Timestamp: now.AddDate(0, -1, 0)},
		{ID: uuid.New(), AssetID: broker.ID, GoalID: house.ID, Share: decimal.NewFromInt(1), Timestamp: now.AddDate(0, -1, 0)},
	}, nil)
	rates.On("Rate", ctx, "EUR", "EUR").Return(decimal.NewFromInt(1), nil)
	rates.On("Rate", ctx, "USD", "EUR").Return(decimal.RequireFromString("0.9"), nil)

	svc := NewValuationService(assetRepo, txRepo, allocRepo, rates)
	holdings, err := svc.Holdings(ctx, now)
	require.NoError(t, err)

	houseTotal, err := svc.GoalTotal(ctx, holdings, house)
	require.NoError(t, err)
	assert.Equal(t, "850", houseTotal.String()) // 800*0.5 + 500*0.9

	carTotal, err := svc.GoalTotal(ctx, holdings, car)
	require.NoError(t, err)
	assert.Equal(t, "400", carTotal.String())

	baselines := holdings.Baselines(house.ID)
	assert.Len(t, baselines, 2)
}

func TestGoalTotal_RateFailureIsPerGoal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	rates := new(MockRateProvider)

	eur := &domain.Asset{ID: uuid.New(), Name: "Savings", Currency: "EUR"}
	jpy := &domain.Asset{ID: uuid.New(), Name: "Yen", Currency: "JPY"}
	a := newGoal("1000", now.AddDate(1, 0, 0))
	b := newGoal("1000", now.AddDate(1, 0, 0))

	holdings := &Holdings{
		At:       now,
		Assets:   map[uuid.UUID]*domain.Asset{eur.ID: eur, jpy.ID: jpy},
		Balances: map[uuid.UUID]decimal.Decimal{eur.ID: decimal.NewFromInt(100), jpy.ID: decimal.NewFromInt(10000)},
		Shares: map[domain.AllocationKey]decimal.Decimal{
			{AssetID: eur.ID, GoalID: a.ID}: decimal.NewFromInt(1),
			{AssetID: jpy.ID, GoalID: b.ID}: decimal.NewFromInt(1),
		},
	}
	rates.On("Rate", ctx, "EUR", "EUR").Return(decimal.NewFromInt(1), nil)
	rates.On("Rate", ctx, "JPY", "EUR").Return(decimal.Zero, errors.New("rate unavailable"))

	svc := NewValuationService(nil, nil, nil, rates)

	_, err := svc.GoalTotal(ctx, holdings, b)
	assert.Error(t, err)

	total, err := svc.GoalTotal(ctx, holdings, a)
	require.NoError(t, err)
	assert.Equal(t, "100", total.String())
}

func TestGoalTotal_NoAllocations(t *testing.T) {
	svc := NewValuationService(nil, nil, nil, new(MockRateProvider))
	holdings := &Holdings{
		Assets:   map[uuid.UUID]*domain.Asset{},
		Balances: map[uuid.UUID]decimal.Decimal{},
		Shares:   map[domain.AllocationKey]decimal.Decimal{},
	}

	total, err := svc.GoalTotal(context.Background(), holdings, newGoal("1000", time.Now().AddDate(1, 0, 0)))
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
