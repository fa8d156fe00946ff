// Package cli implements rivoctl, the operator tool for migrations, staff
// accounts and role permissions.
package cli

import (
	"context"
	"fmt"

	authrepo "rivo_backend/internal/auth/repository"
	authservice "rivo_backend/internal/auth/service"
	"rivo_backend/platform/config"
	"rivo_backend/platform/db"
	"rivo_backend/platform/logger"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// RootCmd assembles every rivoctl subcommand.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rivoctl",
		Short: "Rivo operator tooling",
		Long: `rivoctl manages the Rivo backend database: schema migrations, staff
accounts and the permissions attached to roles.

It reads DATABASE_URL from the environment or a .env file.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(UsersCmd())
	rootCmd.AddCommand(RolesCmd())
	return rootCmd
}

// env is what a command needs once connected.
type env struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	log  *logger.Logger
}

func (e *env) Close() {
	e.pool.Close()
}

func (e *env) authService() *authservice.Service {
	return authservice.New(authrepo.New(e.pool), e.cfg, e.log)
}

func connect(ctx context.Context) (*env, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &env{cfg: cfg, pool: pool, log: logger.New(cfg.Env)}, nil
}

var (
	okMark   = color.New(color.FgHiGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okMark, fmt.Sprintf(format, args...))
}

func warn(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", warnMark, fmt.Sprintf(format, args...))
}
