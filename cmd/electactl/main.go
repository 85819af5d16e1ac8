// Command electactl is the operator CLI: schema migrations, election
// reference inspection and repair, and revocation list housekeeping.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"electa/internal/platform/config"
	"electa/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// env is resolved once before any subcommand runs.
type env struct {
	cfg config.Server
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:          "electactl",
		Short:        "Operate an electa deployment",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = logger.NewWithWriter(cmd.ErrOrStderr(), "text", cfg.LogLevel)
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(e),
		newReferenceCmd(e),
		newTokensCmd(e),
	)
	return root
}

func requireDatabase(e *env) error {
	if e.cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	return nil
}
