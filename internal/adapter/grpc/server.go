package grpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/logger"
	"github.com/simaogato/wealthflow-planner/internal/usecase/execution"
	"github.com/simaogato/wealthflow-planner/internal/usecase/flex"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
)

// Server implements the PlannerService gRPC server
type Server struct {
	PlannerService *planner.Service
	Coordinator    *execution.Coordinator
}

var _ PlannerServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(plannerService *planner.Service, coordinator *execution.Coordinator) *Server {
	return &Server{
		PlannerService: plannerService,
		Coordinator:    coordinator,
	}
}

// GetOrCreatePlans handles the GetOrCreatePlans RPC
func (s *Server) GetOrCreatePlans(ctx context.Context, req *MonthRequest) (*GetOrCreatePlansResponse, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return nil, err
	}

	res, err := s.PlannerService.GetOrCreatePlansForMonth(ctx, nil, month)
	if err != nil {
		return nil, mapError(err)
	}
	return createResultToProto(res), nil
}

// ListPlans handles the ListPlans RPC
func (s *Server) ListPlans(ctx context.Context, req *MonthRequest) (*ListPlansResponse, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return nil, err
	}

	plans, err := s.PlannerService.ListPlans(ctx, month)
	if err != nil {
		return nil, mapError(err)
	}
	return &ListPlansResponse{Plans: plansToProto(plans)}, nil
}

// SetOverride handles the SetOverride RPC. An empty amount clears the override.
func (s *Server) SetOverride(ctx context.Context, req *SetOverrideRequest) (*PlanResponse, error) {
	planID, err := parseID("plan_id", req.PlanId)
	if err != nil {
		return nil, err
	}

	var plan *domain.MonthlyPlan
	if req.Amount == "" {
		plan, err = s.PlannerService.ClearOverride(ctx, planID)
	} else {
		amount, perr := parseDecimal("amount", req.Amount)
		if perr != nil {
			return nil, perr
		}
		plan, err = s.PlannerService.SetOverride(ctx, planID, amount)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &PlanResponse{Plan: planToProto(plan)}, nil
}

// ToggleProtected handles the ToggleProtected RPC
func (s *Server) ToggleProtected(ctx context.Context, req *PlanIDRequest) (*PlanResponse, error) {
	planID, err := parseID("plan_id", req.PlanId)
	if err != nil {
		return nil, err
	}
	plan, err := s.PlannerService.ToggleProtected(ctx, planID)
	if err != nil {
		return nil, mapError(err)
	}
	return &PlanResponse{Plan: planToProto(plan)}, nil
}

// ToggleSkipped handles the ToggleSkipped RPC
func (s *Server) ToggleSkipped(ctx context.Context, req *PlanIDRequest) (*PlanResponse, error) {
	planID, err := parseID("plan_id", req.PlanId)
	if err != nil {
		return nil, err
	}
	plan, err := s.PlannerService.ToggleSkipped(ctx, planID)
	if err != nil {
		return nil, mapError(err)
	}
	return &PlanResponse{Plan: planToProto(plan)}, nil
}

// PreviewFlex handles the PreviewFlex RPC
func (s *Server) PreviewFlex(ctx context.Context, req *FlexRequest) (*FlexResponse, error) {
	month, opts, err := parseFlex(req)
	if err != nil {
		return nil, err
	}
	res, err := s.PlannerService.PreviewFlex(ctx, month, opts)
	if err != nil {
		return nil, mapError(err)
	}
	return flexResultToProto(res, false), nil
}

// ApplyFlex handles the ApplyFlex RPC. An infeasible budget is reported in the
// response with its shortfall instead of failing the call.
func (s *Server) ApplyFlex(ctx context.Context, req *FlexRequest) (*FlexResponse, error) {
	month, opts, err := parseFlex(req)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx)
	res, err := s.PlannerService.ApplyFlex(ctx, month, opts)
	if err != nil {
		if res != nil && res.Infeasible {
			log.Infow("flex budget infeasible", "month", month, "shortfall", res.Shortfall.StringFixed(2))
			return flexResultToProto(res, false), nil
		}
		return nil, mapError(err)
	}
	log.Infow("flex applied",
		"month", month,
		"strategy", res.Strategy,
		"percentage", res.Percentage.String(),
		"total", res.TotalAdjusted.StringFixed(2),
	)
	return flexResultToProto(res, true), nil
}

// StartTracking handles the StartTracking RPC
func (s *Server) StartTracking(ctx context.Context, req *MonthRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, req, "tracking started", s.Coordinator.StartTracking)
}

// UndoStart handles the UndoStart RPC
func (s *Server) UndoStart(ctx context.Context, req *MonthRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, req, "tracking start undone", s.Coordinator.UndoStart)
}

// MarkComplete handles the MarkComplete RPC
func (s *Server) MarkComplete(ctx context.Context, req *MonthRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, req, "month completed", s.Coordinator.MarkComplete)
}

// UndoComplete handles the UndoComplete RPC
func (s *Server) UndoComplete(ctx context.Context, req *MonthRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, req, "completion undone", s.Coordinator.UndoComplete)
}

// GetExecution handles the GetExecution RPC
func (s *Server) GetExecution(ctx context.Context, req *MonthRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, req, "", s.Coordinator.GetRecord)
}

// transition runs fn for the requested month. A non-empty action is logged on success.
func (s *Server) transition(ctx context.Context, req *MonthRequest, action string, fn func(context.Context, domain.MonthLabel) (*domain.ExecutionRecord, error)) (*ExecutionResponse, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	record, err := fn(ctx, month)
	if err != nil {
		return nil, mapError(err)
	}
	if action != "" {
		logger.FromContext(ctx).Infow(action, "month", month, "status", record.Status)
	}
	return &ExecutionResponse{Execution: executionToProto(record)}, nil
}

// ListSnapshots handles the ListSnapshots RPC. Snapshots detached by an undo are
// listed too; ActiveId names the one the execution currently uses.
func (s *Server) ListSnapshots(ctx context.Context, req *MonthRequest) (*ListSnapshotsResponse, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	record, err := s.Coordinator.GetRecord(ctx, month)
	if err != nil {
		return nil, mapError(err)
	}
	snapshots, err := s.Coordinator.Snapshots(ctx, month)
	if err != nil {
		return nil, mapError(err)
	}

	out := &ListSnapshotsResponse{Month: month.String(), Snapshots: make([]*Snapshot, 0, len(snapshots))}
	if record.Snapshot != nil {
		out.ActiveId = record.Snapshot.ID.String()
	}
	for _, snap := range snapshots {
		out.Snapshots = append(out.Snapshots, snapshotToProto(snap))
	}
	return out, nil
}

// GetProgress handles the GetProgress RPC
func (s *Server) GetProgress(ctx context.Context, req *MonthRequest) (*ProgressResponse, error) {
	month, err := parseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	p, err := s.Coordinator.GetProgress(ctx, month)
	if err != nil {
		return nil, mapError(err)
	}
	return progressToProto(p), nil
}

func parseMonth(raw string) (domain.MonthLabel, error) {
	month, err := domain.ParseMonthLabel(raw)
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "invalid month format: %v", err)
	}
	return month, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", field, err)
	}
	return id, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", field, err)
	}
	return d, nil
}

func parseFlex(req *FlexRequest) (domain.MonthLabel, planner.FlexOptions, error) {
	var opts planner.FlexOptions
	month, err := parseMonth(req.Month)
	if err != nil {
		return "", opts, err
	}
	if opts.Strategy, err = flex.ParseStrategy(req.Strategy); err != nil {
		return "", opts, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if req.Percentage != "" {
		p, err := parseDecimal("percentage", req.Percentage)
		if err != nil {
			return "", opts, err
		}
		opts.Percentage = &p
	}
	if req.Budget != "" {
		b, err := parseDecimal("budget", req.Budget)
		if err != nil {
			return "", opts, err
		}
		opts.Budget = &b
	}
	return month, opts, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	errorMsg := err.Error()

	switch {
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	case errors.Is(err, domain.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrNoPlans),
		errors.Is(err, domain.ErrNotTracking),
		errors.Is(err, domain.ErrRedistributionInfeasible):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)
	case errors.Is(err, domain.ErrRateUnavailable):
		return status.Errorf(codes.Unavailable, "%s", errorMsg)
	case errors.Is(err, domain.ErrValidation):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	return status.Errorf(codes.Internal, "%s", errorMsg)
}
