package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"electa/internal/auth/store/revocation"
	"electa/internal/platform/postgres"
)

func newTokensCmd(e *env) *cobra.Command {
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete revocation entries for tokens that have already expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDatabase(e); err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, e.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := revocation.NewPostgresTRL(db).PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d revocation entries\n", n)
			return nil
		},
	}

	tokens := &cobra.Command{
		Use:   "tokens",
		Short: "Token revocation list housekeeping",
	}
	tokens.AddCommand(purge)
	return tokens
}
