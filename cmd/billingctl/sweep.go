package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/bootstrap"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/services/ports"
)

func sweepCmd() *cobra.Command {
	var (
		olderThan     time.Duration
		dryRun        bool
		skipReminders bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the reconciliation sweep once",
		Long: `Run the reconciliation sweep: mark ended trials and subscriptions as
payment due, remove stale payment attempts, expire abandoned payments and
send renewal reminders.

Examples:
  billingctl sweep
  billingctl sweep --older-than 2h --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < time.Minute {
				return fmt.Errorf("--older-than must be at least 1m")
			}
			return withComponents(cmd.Context(), func(ctx context.Context, c *bootstrap.Components) error {
				sweepCtx, cancel := c.Timeouts.SweepContext(ctx)
				defer cancel()

				report, err := c.Sweeper.Run(sweepCtx, ports.SweepOptions{
					OlderThan:     olderThan,
					DryRun:        dryRun,
					SkipReminders: skipReminders,
				})
				if report != nil {
					if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
						return perr
					}
				}
				if err != nil {
					return fmt.Errorf("sweep: %w", err)
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("sweep finished with %d row errors", len(report.Errors))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Minute, "age after which failed or unresolved payment attempts are removed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count what would change without writing")
	cmd.Flags().BoolVar(&skipReminders, "skip-reminders", false, "skip the renewal reminder pass")
	return cmd
}
