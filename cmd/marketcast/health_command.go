package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the daemon is up and answering",
		RunE: func(cmd *cobra.Command, args []string) error {
			daemonClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			if err := daemonClient.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "daemon is healthy")
			return nil
		},
	}
}
