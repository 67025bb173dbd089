package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livinlefevreloca/dinesync/internal/config"
	"github.com/livinlefevreloca/dinesync/internal/db"
	"github.com/livinlefevreloca/dinesync/internal/orchestrator"
	"github.com/livinlefevreloca/dinesync/internal/progress"
	"github.com/livinlefevreloca/dinesync/internal/uploader"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dinesync",
		Short: "Sync POS tables to the remote API",
		Long: `Reads the configured point-of-sale tables over ODBC, splits them into
batches and posts each batch to the sync API. Every table is attempted
even when an earlier one fails.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to configuration file (TOML)")
	return cmd
}

// defaultConfigPath prefers config.toml next to the executable and falls
// back to the working directory.
func defaultConfigPath() string {
	const name = "config.toml"
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	path := filepath.Join(filepath.Dir(exe), name)
	if _, err := os.Stat(path); err != nil {
		return name
	}
	return path
}

func runSync(cmd *cobra.Command, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	tasks, err := cfg.Plan()
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	logger, err := progress.New(cfg.Logging, cmd.OutOrStdout())
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	defer logger.Close()

	logger.Info("POS sync starting", "version", version, "config", configPath)
	logger.Debug("source database", "driver", cfg.Database.Driver, "dsn", cfg.Database.DSN)
	logger.Debug("sync api", "base_url", cfg.API.BaseURL, "format", cfg.API.PayloadFormat)

	client, err := uploader.New(cfg.API, cfg.Retry, logger.Logger)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}
	source := orchestrator.NewDBSource(db.NewFetcher(cfg.Database, logger.Logger))
	runner, err := orchestrator.NewRunner(cfg.Sync, source, client, logger.Logger)
	if err != nil {
		return &exitError{code: exitConfigError, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := runner.Run(ctx, tasks)
	if err := summary.WriteTable(cmd.OutOrStdout()); err != nil {
		logger.Warn("failed to write summary table", "error", err)
	}

	if !summary.AllSucceeded() {
		return &exitError{code: exitTaskFailed, err: errors.New(summary.Line())}
	}
	return nil
}
