package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"credentialing-backend/internal/audit"
)

// NewOutboxCommand groups the audit outbox maintenance commands.
func NewOutboxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Maintain the audit outbox table",
	}
	cmd.AddCommand(newOutboxRelayCommand(rootOpts))
	cmd.AddCommand(newOutboxPurgeCommand(rootOpts))
	return cmd
}

type outboxRelayOptions struct {
	*RootOptions
	Driver string
	Limit  int
}

func newOutboxRelayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &outboxRelayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward pending outbox events to kafka or redis",
		Long: `Read unpublished audit events from the outbox table, send them to a
broker and mark the delivered ones as published.

Example:
  draftctl outbox relay --to kafka --limit 500`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			for _, d := range strings.Split(opts.Driver, ",") {
				if strings.TrimSpace(d) == "outbox" {
					return fmt.Errorf("--to must name a broker, not the outbox itself")
				}
			}
			auditCfg := e.cfg.Audit
			auditCfg.Driver = opts.Driver
			sink, closeSink, err := audit.Open(auditCfg, e.store, e.logger)
			if err != nil {
				return err
			}
			defer closeSink(ctx)

			n, err := audit.Relay(ctx, e.store.DB, e.store.Dialect, sink, opts.Limit, time.Now)
			fmt.Fprintf(cmd.OutOrStdout(), "relayed %d events\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "to", "kafka", "destination sink (kafka, redis, log)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 1000, "maximum events per run")
	return cmd
}

type outboxPurgeOptions struct {
	*RootOptions
	OlderThan time.Duration
}

func newOutboxPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &outboxPurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete published outbox events",
		Long: `Delete outbox rows that were published before the cutoff.
Unpublished rows are never deleted.

Example:
  draftctl outbox purge --older-than 720h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := opts.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := audit.PurgePublished(ctx, e.store.DB, e.store.Dialect, time.Now().Add(-opts.OlderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d events\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 30*24*time.Hour, "only purge events published longer ago than this")
	return cmd
}
