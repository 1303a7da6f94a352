package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storeadmin-io/storeadmin/internal/database"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Long:      `Apply pending migrations (up, the default), roll back the latest one (down) or list their state (status).`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE:      runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}
	switch action {
	case "up", "down", "status":
	default:
		return oops.Code("MIGRATE_INVALID_ACTION").With("action", action).Errorf("unknown migrate action %q", action)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Println("Connecting to database...")
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	switch action {
	case "up":
		cmd.Println("Running migrations...")
		err = db.Migrate(ctx)
	case "down":
		cmd.Println("Rolling back the latest migration...")
		err = db.MigrateDown(ctx)
	case "status":
		err = db.MigrationStatus(ctx)
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("action", action).Wrap(err)
	}

	version, err := db.MigrationVersion(ctx)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}
	cmd.Printf("Database is at version %d\n", version)
	return nil
}
