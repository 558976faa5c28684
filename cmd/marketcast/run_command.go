package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var profile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Request a pipeline run",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			result, err := daemonClient.Run(cmd.Context(), force, profile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Started {
				fmt.Fprintf(out, "run started: id=%s profile=%s\n", result.RunID, result.Profile)
				if result.RunKey != "" {
					fmt.Fprintf(out, "run key: %s\n", result.RunKey)
				}
				return nil
			}
			fmt.Fprintf(out, "run not started: %s\n", result.Reason)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run regardless of schedule window and dedup")
	cmd.Flags().StringVar(&profile, "profile", "", "Execution profile for forced runs (short or normal)")
	return cmd
}

func newLogCommand(ctx *commandContext) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the tail of the last run's output",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			tail, err := daemonClient.Log(cmd.Context(), lines)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "Number of lines (0 uses the daemon default)")
	return cmd
}
