package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"marketcast/internal/client"
	"marketcast/internal/config"
)

// commandContext carries lazily-loaded configuration and the daemon client
// shared by subcommands.
type commandContext struct {
	configFlag *string
	serverFlag *string
	tokenFlag  *string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	var configFlag, serverFlag, tokenFlag string

	ctx := &commandContext{
		configFlag: &configFlag,
		serverFlag: &serverFlag,
		tokenFlag:  &tokenFlag,
	}

	rootCmd := &cobra.Command{
		Use:           "marketcast",
		Short:         "Control the marketcast pipeline daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Daemon base URL (default from config bind address)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "API token (default from config)")

	rootCmd.AddCommand(newHealthCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newLogCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, _, _, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) newClient() (*client.Client, error) {
	server := strings.TrimSpace(*c.serverFlag)
	token := strings.TrimSpace(*c.tokenFlag)

	if server == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if server == "" {
			server = "http://" + cfg.Service.Bind
		}
		if token == "" {
			token = cfg.Service.Token
		}
	}
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	if server == "http://" {
		return nil, fmt.Errorf("no daemon address configured; pass --server")
	}
	return client.New(server, token), nil
}
