package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			runs, err := daemonClient.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no archived runs")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				finished := ""
				if run.FinishedAt != nil {
					finished = run.FinishedAt.Format(time.RFC3339)
				}
				detail := run.RunKey
				if run.ErrorStep != "" {
					detail = "step: " + run.ErrorStep
				}
				rows = append(rows, []string{
					run.StartedAt.Format(time.RFC3339),
					finished,
					run.Status,
					run.Profile,
					run.StartedBy,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Finished", "Status", "Profile", "Trigger", "Detail"},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list")
	return cmd
}
