package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simaogato/wealthflow-planner/internal/adapter/repository/sqlstore"
	"github.com/simaogato/wealthflow-planner/internal/config"
	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
	"github.com/simaogato/wealthflow-planner/internal/serial"
	"github.com/simaogato/wealthflow-planner/internal/usecase/execution"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
	"github.com/simaogato/wealthflow-planner/internal/usecase/progress"
	"github.com/simaogato/wealthflow-planner/internal/usecase/rates"
	"github.com/simaogato/wealthflow-planner/internal/usecase/requirement"
)

const defaultAPIToken = "dev-token"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var flagConfig string

var rootCmd = &cobra.Command{
	Use:           "wealthflow-planner",
	Short:         "Monthly planning and execution tracking for savings goals",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired services shared by the commands
type app struct {
	cfg         config.Config
	log         *zap.SugaredLogger
	db          *sqlstore.DB
	goals       domain.GoalRepository
	rates       *rates.CachedProvider
	planner     *planner.Service
	coordinator *execution.Coordinator
}

// setup loads config, builds the logger and opens the database
func setup(ctx context.Context) (config.Config, *zap.SugaredLogger, *sqlstore.DB, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, nil, nil, err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Dev: cfg.Log.Dev, File: cfg.Log.File})
	if err != nil {
		return cfg, nil, nil, err
	}
	zap.ReplaceGlobals(log.Desugar())

	if cfg.Database.Driver == sqlstore.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return cfg, nil, nil, fmt.Errorf("creating data dir: %w", err)
		}
	}

	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, db, nil
}

// newApp migrates the schema and wires repositories and services
func newApp(ctx context.Context) (*app, error) {
	cfg, log, db, err := setup(ctx)
	if err != nil {
		return nil, err
	}

	applied, err := db.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if applied > 0 {
		log.Infow("database migrated", "applied", applied)
	}

	// Repositories
	goalRepo := sqlstore.NewGoalRepository(db)
	assetRepo := sqlstore.NewAssetRepository(db)
	txRepo := sqlstore.NewTransactionRepository(db)
	allocRepo := sqlstore.NewAllocationRepository(db)
	planRepo := sqlstore.NewPlanRepository(db)
	execRepo := sqlstore.NewExecutionRepository(db)

	// Rates
	static, err := rates.NewStaticProvider(cfg.Rates)
	if err != nil {
		db.Close()
		return nil, err
	}
	rateProvider := rates.NewCachedProvider(static, sqlstore.NewRateHistoryRepository(db), time.Hour, log.Named("rates"))
	valuation := requirement.NewValuationService(assetRepo, txRepo, allocRepo, rateProvider)

	// Services
	attention, critical := cfg.Thresholds()
	queue := serial.New()
	cache := planner.NewPlanCache(cfg.Planning.CacheTTL.Duration)

	plannerService := planner.NewService(planner.Deps{
		GoalRepo:   goalRepo,
		PlanRepo:   planRepo,
		Tx:         db,
		Valuator:   valuation,
		Calculator: requirement.NewCalculator(attention, critical),
		Queue:      queue,
		Cache:      cache,
	}, log.Named("planner"))

	coordinator := execution.NewCoordinator(execution.Deps{
		GoalRepo:      goalRepo,
		PlanRepo:      planRepo,
		ExecutionRepo: execRepo,
		Tx:            db,
		Holdings:      valuation,
		Progress:      progress.NewCalculator(assetRepo, txRepo, allocRepo, rateProvider, cfg.Planning.BaseCurrency, log.Named("progress")),
		Plans:         plannerService,
		Cache:         cache,
		Queue:         queue,
		UndoWindow:    cfg.UndoWindow(),
	}, log.Named("execution"))

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		goals:       goalRepo,
		rates:       rateProvider,
		planner:     plannerService,
		coordinator: coordinator,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Warnw("failed to close database", "error", err)
	}
	_ = a.log.Sync()
}
