package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or list schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			db, err := openDatabase(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only after the command

			out := cmd.OutOrStdout()
			switch action {
			case "up":
				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(out, "migrations applied")
			case "down":
				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(out, "rolled back latest migration")
			case "status":
				applied, pending, err := db.GetMigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
			default:
				return fmt.Errorf("unknown migrate action %q (want up, down or status)", action)
			}
			return nil
		},
	}
	return cmd
}
