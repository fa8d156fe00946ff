package cli

import (
	"context"

	"rivo_backend/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command group.
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	cmd.AddCommand(migrationStep("up", "Apply all pending migrations", db.RunMigrations, "migrations applied"))
	cmd.AddCommand(migrationStep("down", "Roll back the most recent migration", db.RollbackMigration, "rolled back one migration"))
	cmd.AddCommand(migrationStep("status", "Show applied and pending migrations", db.MigrationStatus, ""))
	return cmd
}

func migrationStep(use, short string, run func(context.Context, *pgxpool.Pool) error, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := run(cmd.Context(), e.pool); err != nil {
				return err
			}
			if done != "" {
				success(cmd, done)
			}
			return nil
		},
	}
}
