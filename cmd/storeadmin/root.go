package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/storeadmin-io/storeadmin/internal/config"
	"github.com/storeadmin-io/storeadmin/internal/logging"
)

const serviceName = "storeadmin"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the storeadmin CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storeadmin",
		Short: "Store Admin - e-commerce administration panel",
		Long: `Store Admin serves the staff-facing administration panel: accounts,
sessions, password reset requests and the product, category and customer listings.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// Variables from .env never override the real environment.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return oops.Code("CONFIG_INVALID").With("file", ".env").Wrap(err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads the configuration and installs the default logger it describes.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").With("path", configFile).Wrap(err)
	}
	logger := logging.SetDefault(serviceName, cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}
