//go:build integration

package integration

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcadapter "github.com/simaogato/wealthflow-planner/internal/adapter/grpc"
	"github.com/simaogato/wealthflow-planner/internal/adapter/repository/sqlstore"
	"github.com/simaogato/wealthflow-planner/internal/domain"
)

var (
	db         *sqlstore.DB
	grpcClient *grpcadapter.Client
	grpcConn   *grpc.ClientConn
	testGoal   *domain.Goal
	testMonth  string
)

// TestMain sets up the test environment against a running server and its database
func TestMain(m *testing.M) {
	ctx := context.Background()

	// 1. Connect to Database
	driver, dsn := getDBConfig()
	var err error
	db, err = sqlstore.Open(ctx, driver, dsn, nil)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	if _, err := db.Migrate(ctx); err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}

	// 2. Connect to gRPC Server
	grpcConn, err = grpc.NewClient(getGRPCAddress(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to gRPC server: %v", err))
	}
	grpcClient = grpcadapter.NewClient(grpcConn)

	// 3. A far future month no earlier run has touched
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	testMonth = fmt.Sprintf("%04d-%02d", 2100+r.Intn(800), 1+r.Intn(12))

	if err := setupTestGoal(ctx); err != nil {
		panic(fmt.Sprintf("Failed to setup test goal: %v", err))
	}

	code := m.Run()

	grpcConn.Close()
	db.Close()
	os.Exit(code)
}

// setupTestGoal creates a goal backed by one fully allocated account
func setupTestGoal(ctx context.Context) error {
	now := time.Now().UTC()
	suffix := uuid.NewString()[:8]

	testGoal = &domain.Goal{
		ID:           uuid.New(),
		Name:         "E2E Goal " + suffix,
		TargetAmount: decimal.NewFromInt(24000),
		Currency:     "EUR",
		Deadline:     time.Date(2999, 12, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:    now,
	}
	if err := sqlstore.NewGoalRepository(db).Create(ctx, testGoal); err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}

	asset := &domain.Asset{ID: uuid.New(), Name: "E2E Savings " + suffix, Currency: "EUR"}
	if err := sqlstore.NewAssetRepository(db).Create(ctx, asset); err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	if err := sqlstore.NewAllocationRepository(db).Record(ctx, &domain.AllocationChange{
		ID: uuid.New(), AssetID: asset.ID, GoalID: testGoal.ID, Share: decimal.NewFromInt(1), Timestamp: now,
	}); err != nil {
		return fmt.Errorf("failed to allocate asset: %w", err)
	}
	return sqlstore.NewTransactionRepository(db).Create(ctx, &domain.Transaction{
		ID: uuid.New(), AssetID: asset.ID, Amount: decimal.NewFromInt(1000), Date: now, Description: "opening balance",
	})
}

// getAuthContext returns a context carrying the API token
func getAuthContext() context.Context {
	token := os.Getenv("API_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", token)
}

// getDBConfig returns the database driver and dsn from environment or defaults
func getDBConfig() (string, string) {
	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = sqlstore.DriverPostgres
	}
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return driver, connStr
	}
	return driver, "host=localhost port=5432 user=postgres password=postgres dbname=wealthflow sslmode=disable"
}

// getGRPCAddress returns the gRPC server address from environment or defaults
func getGRPCAddress() string {
	addr := os.Getenv("GRPC_ADDRESS")
	if addr == "" {
		addr = "localhost:8080"
	}
	return addr
}

func findPlan(plans []*grpcadapter.Plan, goalID uuid.UUID) *grpcadapter.Plan {
	for _, p := range plans {
		if p.GoalId == goalID.String() {
			return p
		}
	}
	return nil
}

// TestEndToEndFlow walks one month through plan, flex, start, complete and undo
func TestEndToEndFlow(t *testing.T) {
	ctx := getAuthContext()
	month := &grpcadapter.MonthRequest{Month: testMonth}

	// 1. Plans are created once
	created, err := grpcClient.GetOrCreatePlans(ctx, month)
	require.NoError(t, err, "GetOrCreatePlans should succeed")
	plan := findPlan(created.Plans, testGoal.ID)
	require.NotNil(t, plan, "test goal should have a plan")
	assert.Equal(t, string(domain.PlanStateDraft), plan.State)
	assert.Equal(t, "EUR", plan.Currency)

	again, err := grpcClient.GetOrCreatePlans(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, int32(0), again.Created, "second call must not create plans")
	assert.Equal(t, plan.Id, findPlan(again.Plans, testGoal.ID).Id)

	// 2. Override and flex
	updated, err := grpcClient.SetOverride(ctx, &grpcadapter.SetOverrideRequest{PlanId: plan.Id, Amount: "150"})
	require.NoError(t, err)
	assert.Equal(t, "150", updated.Plan.EffectiveAmount)

	preview, err := grpcClient.PreviewFlex(ctx, &grpcadapter.FlexRequest{Month: testMonth, Percentage: "80"})
	require.NoError(t, err)
	assert.False(t, preview.Applied)

	protected, err := grpcClient.ToggleProtected(ctx, &grpcadapter.PlanIDRequest{PlanId: plan.Id})
	require.NoError(t, err)
	assert.Equal(t, string(domain.FlexStateProtected), protected.Plan.Flex)

	// 3. Start tracking freezes the plans and captures the snapshot
	started, err := grpcClient.StartTracking(ctx, month)
	require.NoError(t, err, "StartTracking should succeed")
	assert.Equal(t, string(domain.ExecutionStatusExecuting), started.Execution.Status)
	require.NotNil(t, started.Execution.Snapshot)
	assert.Contains(t, started.Execution.TrackedGoalIds, testGoal.ID.String())

	_, err = grpcClient.ToggleSkipped(ctx, &grpcadapter.PlanIDRequest{PlanId: plan.Id})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err), "flex state is locked while executing")

	progress, err := grpcClient.GetProgress(ctx, month)
	require.NoError(t, err)
	assert.False(t, progress.Frozen)

	// 4. Complete and undo
	closed, err := grpcClient.MarkComplete(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecutionStatusClosed), closed.Execution.Status)
	require.NotNil(t, closed.Execution.Completion)

	reopened, err := grpcClient.UndoComplete(ctx, month)
	if os.Getenv("PLANNER_UNDO_WINDOW_HOURS") == "0" {
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
		return
	}
	require.NoError(t, err)
	assert.Equal(t, string(domain.ExecutionStatusExecuting), reopened.Execution.Status)

	got, err := grpcClient.GetExecution(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, started.Execution.Snapshot.Id, got.Execution.Snapshot.Id)
}

// TestNegativeScenarios checks the error codes of rejected calls
func TestNegativeScenarios(t *testing.T) {
	ctx := getAuthContext()

	t.Run("Invalid Month", func(t *testing.T) {
		_, err := grpcClient.ListPlans(ctx, &grpcadapter.MonthRequest{Month: "13/2025"})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("Unknown Plan", func(t *testing.T) {
		_, err := grpcClient.ToggleProtected(ctx, &grpcadapter.PlanIDRequest{PlanId: uuid.NewString()})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("Negative Override", func(t *testing.T) {
		_, err := grpcClient.SetOverride(ctx, &grpcadapter.SetOverrideRequest{PlanId: uuid.NewString(), Amount: "-5"})
		assert.Error(t, err)
	})

	t.Run("Progress Of Untracked Month", func(t *testing.T) {
		_, err := grpcClient.GetProgress(ctx, &grpcadapter.MonthRequest{Month: "1999-01"})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("Missing Token", func(t *testing.T) {
		_, err := grpcClient.ListPlans(context.Background(), &grpcadapter.MonthRequest{Month: testMonth})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}
