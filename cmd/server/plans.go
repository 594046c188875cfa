package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simaogato/wealthflow-planner/internal/domain"
	"github.com/simaogato/wealthflow-planner/internal/usecase/planner"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Plan maintenance",
}

var pruneDraftsCmd = &cobra.Command{
	Use:   "prune-drafts <month>",
	Short: "Delete draft plans of months before the given YYYY-MM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := domain.ParseMonthLabel(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.planner.DeleteStaleDrafts(ctx, before)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d draft plans before %s\n", deleted, before)
		return nil
	},
}

// legacyRecord is one entry of a legacy plan export
type legacyRecord struct {
	GoalID   uuid.UUID        `json:"goal_id"`
	Month    string           `json:"month"`
	Override *decimal.Decimal `json:"override,omitempty"`
	Flex     string           `json:"flex,omitempty"`
}

var importLegacyCmd = &cobra.Command{
	Use:   "import-legacy <file.json>",
	Short: "Backfill plans from a legacy JSON export",
	Long: `Backfill plans from a legacy JSON export: an array of
{"goal_id", "month", "override", "flex"} objects. Records whose month cannot be
read are imported into the current month and flagged for review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading legacy export: %w", err)
		}
		var records []legacyRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("parsing legacy export: %w", err)
		}

		legacy := make([]planner.LegacyPlan, len(records))
		for i, r := range records {
			legacy[i] = planner.LegacyPlan{GoalID: r.GoalID, MonthHint: r.Month, Override: r.Override, Flex: r.Flex}
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.planner.ImportLegacyPlans(ctx, legacy)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "imported %d, skipped %d, needs review %d, failed %d\n",
			len(res.Imported), res.Skipped, res.NeedReview, len(res.Failed))
		failed := make([]string, 0, len(res.Failed))
		for id, ferr := range res.Failed {
			failed = append(failed, fmt.Sprintf("  %s: %v", id, ferr))
		}
		sort.Strings(failed)
		for _, line := range failed {
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	plansCmd.AddCommand(pruneDraftsCmd, importLegacyCmd)
	rootCmd.AddCommand(plansCmd)
}
