package main

import (
	"os"

	"github.com/spf13/cobra"
)

// envFile overrides DOTENV_FILE for every subcommand.
var envFile string

// NewRootCmd creates the root command for the lodge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lodge",
		Short: "lodge - a small site with username and password sign-in",
		Long: `lodge serves a handful of HTML pages behind a cookie session.
Visitors register or sign in with a username and password.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile != "" {
				return os.Setenv("DOTENV_FILE", envFile)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewGenSecretCmd())

	return cmd
}
