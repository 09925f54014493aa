package main

import (
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/lodge/internal/web/app"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations to the configured database and exit.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	// Migrating does not need a session secret, so only the database half of
	// the config has to be valid.
	cfg, err := app.LoadConfig()
	if errors.Is(err, app.ErrMissingSessionSecret) {
		err = cfg.ValidateDatabase()
	}
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "load config").Wrap(err)
	}

	logger := app.NewLogger(cfg)

	cmd.Println("Running migrations...")
	st, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	defer func() { _ = st.Close() }()

	cmd.Println("Migrations completed successfully")
	return nil
}
