package grpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/usecase/flex"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
	"github.com/simaogato/wealthflow-planner/internal/usecase/progress"
)

// Amounts travel as decimal strings, timestamps as protobuf Timestamps.

type MonthRequest struct {
	Month string `json:"month"`
}

type PlanIDRequest struct {
	PlanId string `json:"plan_id"`
}

type SetOverrideRequest struct {
	PlanId string `json:"plan_id"`
	Amount string `json:"amount"` // empty clears the override
}

type FlexRequest struct {
	Month      string `json:"month"`
	Percentage string `json:"percentage,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	Budget     string `json:"budget,omitempty"`
}

type Plan struct {
	Id                 string                 `json:"id"`
	GoalId             string                 `json:"goal_id"`
	Month              string                 `json:"month"`
	CalculatedRequired string                 `json:"calculated_required"`
	Remaining          string                 `json:"remaining"`
	PeriodsRemaining   int32                  `json:"periods_remaining"`
	Currency           string                 `json:"currency"`
	Status             string                 `json:"status"`
	Override           string                 `json:"override,omitempty"`
	EffectiveAmount    string                 `json:"effective_amount"`
	State              string                 `json:"state"`
	Flex               string                 `json:"flex"`
	NeedsReview        bool                   `json:"needs_review"`
	CreatedAt          *timestamppb.Timestamp `json:"created_at"`
	ModifiedAt         *timestamppb.Timestamp `json:"modified_at"`
	CalculatedAt       *timestamppb.Timestamp `json:"calculated_at"`
}

type PlanResponse struct {
	Plan *Plan `json:"plan"`
}

type ListPlansResponse struct {
	Plans []*Plan `json:"plans"`
}

type GetOrCreatePlansResponse struct {
	Month   string            `json:"month"`
	Plans   []*Plan           `json:"plans"`
	Created int32             `json:"created"`
	Reused  int32             `json:"reused"`
	Failed  map[string]string `json:"failed,omitempty"` // goal id -> reason
}

type Adjustment struct {
	PlanId       string `json:"plan_id"`
	GoalId       string `json:"goal_id"`
	Name         string `json:"name"`
	Flex         string `json:"flex"`
	Original     string `json:"original"`
	Adjusted     string `json:"adjusted"`
	ReductionPct string `json:"reduction_pct"`
	Reason       string `json:"reason"`
	Risk         string `json:"risk"`
}

type FlexResponse struct {
	Strategy      string        `json:"strategy"`
	Percentage    string        `json:"percentage"`
	Adjustments   []*Adjustment `json:"adjustments"`
	TotalOriginal string        `json:"total_original"`
	TotalAdjusted string        `json:"total_adjusted"`
	Unapplied     string        `json:"unapplied"`
	Shortfall     string        `json:"shortfall"`
	Infeasible    bool          `json:"infeasible"`
	Applied       bool          `json:"applied"`
}

type SnapshotGoal struct {
	GoalId        string `json:"goal_id"`
	Name          string `json:"name"`
	PlannedAmount string `json:"planned_amount"`
	Currency      string `json:"currency"`
	Flex          string `json:"flex"`
}

type Snapshot struct {
	Id         string                 `json:"id"`
	CapturedAt *timestamppb.Timestamp `json:"captured_at"`
	Goals      []*SnapshotGoal        `json:"goals"`
}

type CompletedGoal struct {
	GoalId      string `json:"goal_id"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	Planned     string `json:"planned"`
	Contributed string `json:"contributed"`
}

type Completion struct {
	CompletedAt      *timestamppb.Timestamp `json:"completed_at"`
	BaseCurrency     string                 `json:"base_currency"`
	Rates            map[string]string      `json:"rates"`
	Goals            []*CompletedGoal       `json:"goals"`
	TotalPlanned     string                 `json:"total_planned"`
	TotalContributed string                 `json:"total_contributed"`
	Progress         string                 `json:"progress"`
}

type Execution struct {
	Month          string                 `json:"month"`
	Status         string                 `json:"status"`
	StartedAt      *timestamppb.Timestamp `json:"started_at,omitempty"`
	CompletedAt    *timestamppb.Timestamp `json:"completed_at,omitempty"`
	UndoDeadline   *timestamppb.Timestamp `json:"undo_deadline,omitempty"`
	TrackedGoalIds []string               `json:"tracked_goal_ids"`
	Snapshot       *Snapshot              `json:"snapshot,omitempty"`
	Completion     *Completion            `json:"completion,omitempty"`
}

type ExecutionResponse struct {
	Execution *Execution `json:"execution"`
}

type ListSnapshotsResponse struct {
	Month string `json:"month"`
	// ActiveId is the snapshot the execution record points at, empty when none
	ActiveId  string      `json:"active_id,omitempty"`
	Snapshots []*Snapshot `json:"snapshots"`
}

type GoalProgress struct {
	GoalId      string `json:"goal_id"`
	Name        string `json:"name"`
	Currency    string `json:"currency"`
	Planned     string `json:"planned"`
	Contributed string `json:"contributed"`
	Ratio       string `json:"ratio"`
}

type ContributionEvent struct {
	Timestamp   *timestamppb.Timestamp `json:"timestamp"`
	Source      string                 `json:"source"`
	AssetId     string                 `json:"asset_id"`
	GoalId      string                 `json:"goal_id"`
	AssetAmount string                 `json:"asset_amount"`
	GoalAmount  string                 `json:"goal_amount"`
	Rate        string                 `json:"rate"`
}

type ProgressResponse struct {
	Month            string                 `json:"month"`
	AsOf             *timestamppb.Timestamp `json:"as_of"`
	Frozen           bool                   `json:"frozen"`
	BaseCurrency     string                 `json:"base_currency"`
	Goals            []*GoalProgress        `json:"goals"`
	Events           []*ContributionEvent   `json:"events"`
	TotalPlanned     string                 `json:"total_planned"`
	TotalContributed string                 `json:"total_contributed"`
	Ratio            string                 `json:"ratio"`
	Failed           map[string]string      `json:"failed,omitempty"`
}

func timestamp(t *time.Time) *timestamppb.Timestamp {
	if t == nil {
		return nil
	}
	return timestamppb.New(*t)
}

func planToProto(p *domain.MonthlyPlan) *Plan {
	out := &Plan{
		Id:                 p.ID.String(),
		GoalId:             p.GoalID.String(),
		Month:              p.Month.String(),
		CalculatedRequired: p.CalculatedRequired.String(),
		Remaining:          p.Remaining.String(),
		PeriodsRemaining:   int32(p.PeriodsRemaining),
		Currency:           p.Currency,
		Status:             string(p.Status),
		EffectiveAmount:    p.EffectiveAmount().String(),
		State:              string(p.State),
		Flex:               string(p.Flex),
		NeedsReview:        p.NeedsReview,
		CreatedAt:          timestamppb.New(p.CreatedAt),
		ModifiedAt:         timestamppb.New(p.ModifiedAt),
		CalculatedAt:       timestamppb.New(p.CalculatedAt),
	}
	if p.Override != nil {
		out.Override = p.Override.String()
	}
	return out
}

func plansToProto(plans []*domain.MonthlyPlan) []*Plan {
	out := make([]*Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, planToProto(p))
	}
	return out
}

func createResultToProto(res *planner.CreateResult) *GetOrCreatePlansResponse {
	out := &GetOrCreatePlansResponse{
		Month:   res.Month.String(),
		Plans:   plansToProto(res.Plans),
		Created: int32(res.Created),
		Reused:  int32(res.Reused),
	}
	if len(res.Failed) > 0 {
		out.Failed = make(map[string]string, len(res.Failed))
		for id, err := range res.Failed {
			out.Failed[id.String()] = err.Error()
		}
	}
	return out
}

func flexResultToProto(res *flex.Result, applied bool) *FlexResponse {
	out := &FlexResponse{
		Strategy:      string(res.Strategy),
		Percentage:    res.Percentage.String(),
		TotalOriginal: res.TotalOriginal.String(),
		TotalAdjusted: res.TotalAdjusted.String(),
		Unapplied:     res.Unapplied.String(),
		Shortfall:     res.Shortfall.String(),
		Infeasible:    res.Infeasible,
		Applied:       applied,
	}
	for _, a := range res.Adjustments {
		out.Adjustments = append(out.Adjustments, &Adjustment{
			PlanId:       a.PlanID.String(),
			GoalId:       a.GoalID.String(),
			Name:         a.Name,
			Flex:         string(a.Flex),
			Original:     a.Original.String(),
			Adjusted:     a.Adjusted.String(),
			ReductionPct: a.ReductionPct.String(),
			Reason:       a.Reason,
			Risk:         string(a.Risk),
		})
	}
	return out
}

func snapshotToProto(s *domain.StartSnapshot) *Snapshot {
	out := &Snapshot{Id: s.ID.String(), CapturedAt: timestamppb.New(s.CapturedAt)}
	for _, g := range s.Goals {
		out.Goals = append(out.Goals, &SnapshotGoal{
			GoalId:        g.GoalID.String(),
			Name:          g.Name,
			PlannedAmount: g.PlannedAmount.String(),
			Currency:      g.Currency,
			Flex:          string(g.Flex),
		})
	}
	return out
}

func executionToProto(r *domain.ExecutionRecord) *Execution {
	out := &Execution{
		Month:          r.Month.String(),
		Status:         string(r.Status),
		StartedAt:      timestamp(r.StartedAt),
		CompletedAt:    timestamp(r.CompletedAt),
		UndoDeadline:   timestamp(r.UndoDeadline),
		TrackedGoalIds: make([]string, 0, len(r.TrackedGoalIDs)),
	}
	for _, id := range r.TrackedGoalIDs {
		out.TrackedGoalIds = append(out.TrackedGoalIds, id.String())
	}

	if r.Snapshot != nil {
		out.Snapshot = snapshotToProto(r.Snapshot)
	}

	if c := r.Completion; c != nil {
		out.Completion = &Completion{
			CompletedAt:      timestamppb.New(c.CompletedAt),
			BaseCurrency:     c.BaseCurrency,
			Rates:            make(map[string]string, len(c.Rates)),
			TotalPlanned:     c.TotalPlanned.String(),
			TotalContributed: c.TotalContributed.String(),
			Progress:         c.Progress.String(),
		}
		for pair, rate := range c.Rates {
			out.Completion.Rates[pair] = rate.String()
		}
		for _, g := range c.Goals {
			out.Completion.Goals = append(out.Completion.Goals, &CompletedGoal{
				GoalId:      g.GoalID.String(),
				Name:        g.Name,
				Currency:    g.Currency,
				Planned:     g.Planned.String(),
				Contributed: g.Contributed.String(),
			})
		}
	}
	return out
}

func progressToProto(p *progress.Progress) *ProgressResponse {
	out := &ProgressResponse{
		Month:            p.Month.String(),
		AsOf:             timestamppb.New(p.AsOf),
		Frozen:           p.Frozen,
		BaseCurrency:     p.BaseCurrency,
		TotalPlanned:     p.TotalPlanned.String(),
		TotalContributed: p.TotalContributed.String(),
		Ratio:            p.Ratio.String(),
	}
	for _, g := range p.Goals {
		out.Goals = append(out.Goals, &GoalProgress{
			GoalId:      g.GoalID.String(),
			Name:        g.Name,
			Currency:    g.Currency,
			Planned:     g.Planned.String(),
			Contributed: g.Contributed.String(),
			Ratio:       g.Ratio().String(),
		})
	}
	for _, ev := range p.Events {
		out.Events = append(out.Events, &ContributionEvent{
			Timestamp:   timestamppb.New(ev.Timestamp),
			Source:      string(ev.Source),
			AssetId:     ev.AssetID.String(),
			GoalId:      ev.GoalID.String(),
			AssetAmount: ev.AssetAmount.String(),
			GoalAmount:  ev.GoalAmount.String(),
			Rate:        ev.Rate.String(),
		})
	}
	if len(p.Failed) > 0 {
		out.Failed = make(map[string]string, len(p.Failed))
		for id, err := range p.Failed {
			out.Failed[id.String()] = err.Error()
		}
	}
	return out
}
