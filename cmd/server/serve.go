package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"

	grpcadapter "github.com/simaogato/wealthflow-planner/internal/adapter/grpc"
	"github.com/simaogato/wealthflow-planner/internal/usecase/automation"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the planner gRPC server and the automation scheduler",
	Long: `Run the planner gRPC server and the automation scheduler.

SIGHUP recalculates the draft plans of every goal, for use after goals were
edited directly in the database. SIGINT and SIGTERM shut down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if flagServeAddr != "" {
		addr = flagServeAddr
	}
	apiToken := a.cfg.Server.APIToken
	if apiToken == "" {
		apiToken = defaultAPIToken
		a.log.Warnw("no api token configured, using the development token")
	}

	grpcServer := grpcadapter.NewGRPCServer(
		grpcadapter.NewServer(a.planner, a.coordinator),
		apiToken,
		a.log.Named("grpc"),
	)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	scheduler := automation.New(automation.Config{
		Enabled:  a.cfg.Automation.Enabled,
		Interval: a.cfg.Automation.CheckInterval.Duration,
	}, a.coordinator, a.log.Named("automation"))

	events := make(chan planner.GoalChangedEvent, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Infow("gRPC server listening", "addr", addr)
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpclib.ErrServerStopped) {
			return fmt.Errorf("failed to serve gRPC server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.planner.Run(gctx, events)
	})
	g.Go(func() error {
		return watchReload(gctx, a, events)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Infow("shutting down gracefully")
		grpcServer.GracefulStop()
		a.log.Infow("gRPC server stopped")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchReload turns SIGHUP into a rate cache flush plus one update event per goal
func watchReload(ctx context.Context, a *app, events chan<- planner.GoalChangedEvent) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			a.rates.Invalidate()
			goals, err := a.goals.List(ctx)
			if err != nil {
				a.log.Errorw("reload: failed to list goals", "error", err)
				continue
			}
			a.log.Infow("reload: recalculating draft plans", "goals", len(goals))
			for _, goal := range goals {
				select {
				case events <- planner.GoalChangedEvent{GoalID: goal.ID, Kind: planner.GoalUpdated}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
