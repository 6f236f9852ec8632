package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect token and cost accounting",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show session and lifetime usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(app)
			if err != nil {
				return err
			}
			defer e.Close()

			if lifetime, err := e.remote.ReadLifetimeUsage(cmd.Context(), e.userID); err == nil {
				if _, err := e.ledger.MergeLifetime(lifetime.LifetimeCost, lifetime.LifetimeImageCount); err != nil {
					e.log.Warn().Err(err).Msg("failed to persist usage snapshot")
				}
			}

			snap := e.ledger.Snapshot()
			breakdown := e.ledger.CostBreakdown(e.prefs.Model())

			fmt.Fprintf(app.Out, "Model: %s\n", e.prefs.Model())
			fmt.Fprintln(app.Out, "Session:")
			fmt.Fprintf(app.Out, "  Input tokens:        %d\n", snap.Session.InputTokens)
			fmt.Fprintf(app.Out, "  Output text tokens:  %d\n", snap.Session.OutputTextTokens)
			fmt.Fprintf(app.Out, "  Output image tokens: %d\n", snap.Session.OutputImageTokens)
			fmt.Fprintf(app.Out, "  Images:              %d\n", snap.Session.ImageCount)
			fmt.Fprintf(app.Out, "  Cost:                $%.4f\n", breakdown.TotalCost)
			fmt.Fprintln(app.Out, "Lifetime:")
			fmt.Fprintf(app.Out, "  Cost:                $%.4f\n", snap.LifetimeCost)
			fmt.Fprintf(app.Out, "  Images:              %d\n", snap.LifetimeImageCount)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Reset session counters (lifetime totals are kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(app)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.ledger.Reset(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Session usage cleared")
			return nil
		},
	}

	cmd.AddCommand(showCmd, clearCmd)
	return cmd
}
