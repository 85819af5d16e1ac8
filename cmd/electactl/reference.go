package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"electa/internal/election/ledger"
	"electa/internal/election/models"
	"electa/internal/election/reference"
	"electa/internal/platform/redis"
)

func newReferenceCmd(e *env) *cobra.Command {
	ref := &cobra.Command{
		Use:   "reference",
		Short: "Inspect or repair the election reference",
	}
	ref.AddCommand(
		newReferenceShowCmd(e),
		newReferenceClearCmd(e),
		newReferenceCheckCmd(e),
	)
	return ref
}

func newReferenceShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReferences(cmd.Context(), e, func(store reference.Store) error {
				current, err := store.Get(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), current)
			})
		},
	}
}

func newReferenceClearCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Point the reference back at the null address",
		Long: "Clears the deployed address and any transition marker. A live marker " +
			"means a start or end fan-out is running; pass --force to clear it anyway.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReferences(cmd.Context(), e, func(store reference.Store) error {
				ctx := cmd.Context()
				current, err := store.Get(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				if current.TransitionHeld(now, e.cfg.Election.TransitionStaleAge) && !force {
					return fmt.Errorf("election %s transition in progress since %s; use --force",
						current.Transition, current.TransitionAt.Format(time.RFC3339))
				}
				next, err := store.CompareAndSwap(ctx, current.Version, current.Cleared(now).Released(now))
				if err != nil {
					return fmt.Errorf("clear reference: %w", err)
				}
				e.log.Info("election reference cleared",
					"previous_address", current.Address.String(),
					"version", next.Version,
				)
				return printJSON(cmd.OutOrStdout(), next)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear even while a transition marker is live")
	return cmd
}

type checkReport struct {
	Stored   models.Reference `json:"stored"`
	Started  bool             `json:"ledgerStarted"`
	Ended    bool             `json:"ledgerEnded"`
	State    models.State     `json:"state"`
	Drifted  bool             `json:"drifted"`
	Checked  time.Time        `json:"checkedAt"`
	LedgerOK bool             `json:"ledgerReachable"`
}

func newReferenceCheckCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compare the stored reference against the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReferences(cmd.Context(), e, func(store reference.Store) error {
				ctx := cmd.Context()
				current, err := store.Get(ctx)
				if err != nil {
					return err
				}
				report := checkReport{Stored: current, Checked: time.Now().UTC(), State: models.StateNoElection}
				if !current.HasElection() {
					report.LedgerOK = true
					return printJSON(cmd.OutOrStdout(), report)
				}
				if e.cfg.Election.LedgerRPCURL == "" {
					return fmt.Errorf("LEDGER_RPC_URL is not set")
				}
				client, err := ledger.Dial(ctx, e.cfg.Election.LedgerRPCURL,
					ledger.WithLogger(e.log),
					ledger.WithTimeout(e.cfg.Election.LedgerTimeout),
				)
				if err != nil {
					return err
				}
				defer client.Close()
				if err := readLedger(ctx, client, current, &report); err != nil {
					e.log.Warn("ledger read failed", "address", current.Address.String(), "error", err)
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func readLedger(ctx context.Context, reader ledger.Reader, current models.Reference, report *checkReport) error {
	started, err := reader.IsStarted(ctx, current.Address)
	if err != nil {
		return err
	}
	ended, err := reader.IsEnded(ctx, current.Address)
	if err != nil {
		return err
	}
	report.LedgerOK = true
	report.Started = started
	report.Ended = ended
	report.State = models.DeriveState(true, started, ended)
	report.Drifted = current.Drifted(started, ended)
	return nil
}

func withReferences(ctx context.Context, e *env, fn func(reference.Store) error) error {
	rc, err := redis.New(ctx, e.cfg.Redis)
	if err != nil {
		return err
	}
	var client *goredis.Client
	if rc != nil {
		defer rc.Close()
		client = rc.Client
	}
	store, closeFn, err := reference.Open(e.cfg.Election, client)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			e.log.Warn("failed to close reference store", "error", err)
		}
	}()
	return fn(store)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
