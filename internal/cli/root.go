// Package cli implements the responderbot command tree.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-responder-bot/internal/config"
	"github.com/tbourn/go-responder-bot/internal/repo"
	"github.com/tbourn/go-responder-bot/internal/sysutil"
)

// Version is stamped at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// NewRootCmd wires the cobra root command.
func NewRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:     "responderbot",
		Short:   "Slack bot that answers messages from pattern rules",
		Long:    "responderbot listens to Slack message events and replies with the responses of every stored rule that matches, in priority order.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file when it exists")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newImportCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newMatchCommand())
	return root
}

// loadEnvFile applies path to the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// setup loads configuration and installs the global logger on the command's
// stderr.
func setup(cmd *cobra.Command) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	lg := sysutil.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
	return cfg, lg, nil
}

// openStore connects to the configured rule store. The returned func closes
// the pool.
func openStore(cfg config.Config) (*gorm.DB, func(), error) {
	db, err := repo.Open(repo.Options{
		URL:     cfg.Database.URL,
		SSL:     cfg.Database.SSL,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeFn, nil
}
