package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"extension-launcher/config"
	"extension-launcher/internal/browser"
	"extension-launcher/internal/core"
	"extension-launcher/internal/display"
	"extension-launcher/internal/extension"
	"extension-launcher/internal/repository"
	"extension-launcher/internal/workflows"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform a single run (default)",
		Args:  cobra.NoArgs,
		RunE:  runOnce,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("url", "", "Target page URL")
	f.String("strategy", "", "Wait strategy: completion or fixed")
	f.Duration("timeout", 0, "Completion wait timeout")
	f.String("screenshot", "", "Screenshot output path")
	f.String("workflow", "", "Workflow descriptor JSON (loaded, not executed)")
	f.String("browser", "", "Chromium binary")
	f.String("db", "", "Run history database path")
	f.Bool("no-display", false, "Use the inherited DISPLAY instead of starting Xvfb")
}

// app holds the components shared by the run and schedule commands
type app struct {
	cfg    *core.Config
	logger *zap.Logger
	repo   *repository.SQLiteRepository
	runner *workflows.Runner
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Extension launcher - Starting",
		zap.String("url", cfg.Target.URL),
		zap.String("strategy", cfg.Wait.Strategy),
	)

	repo, err := repository.NewSQLiteRepository(cfg.Database.Path)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	logger.Info("Repository initialized", zap.String("db_path", cfg.Database.Path))

	waiter, err := workflows.NewWaiter(&cfg.Wait, cfg.Browser.ElementTimeout, logger)
	if err != nil {
		repo.Close()
		logger.Sync()
		return nil, err
	}

	// A typed nil *Xvfb would not compare equal to nil inside the runner
	var disp core.DisplayPort
	if cfg.Display.Enabled {
		disp = display.NewXvfb(&cfg.Display, cfg.Browser.WindowWidth, cfg.Browser.WindowHeight, logger)
	}

	runner := workflows.NewRunner(
		cfg,
		disp,
		browser.NewInstance(&cfg.Browser, logger),
		extension.NewExtractor(cfg.Extensions.SourceDir, cfg.Extensions.ExtractDir, logger),
		waiter,
		repo,
		logger,
	)

	return &app{cfg: cfg, logger: logger, repo: repo, runner: runner}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		a.logger.Error("Failed to close repository", zap.Error(err))
	}
	a.logger.Sync()
}

// runAndReport performs one run and prints the result banner
func (a *app) runAndReport(ctx context.Context) error {
	run, err := a.runner.Run(ctx)
	if err != nil {
		a.logger.Error("Run failed", zap.String("run_id", run.ID), zap.Error(err))
		a.logger.Error("FAILED - Check errors above")
		return errRunFailed
	}

	a.logger.Info("SUCCESS",
		zap.String("run_id", run.ID),
		zap.Bool("completed", run.Completed),
		zap.String("screenshot", run.ScreenshotPath),
	)
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.runAndReport(cmd.Context())
}
