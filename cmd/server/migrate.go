package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, log, db, err := setup(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		before, err := db.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		applied, err := db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		after, err := db.SchemaVersion(ctx)
		if err != nil {
			return err
		}

		log.Infow("migrations applied", "applied", applied, "from", before, "to", after)
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d -> %d (%d applied)\n", before, after, applied)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
