package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"extension-launcher/internal/core"
	"extension-launcher/internal/extension"
	"extension-launcher/pkg/utils"
)

const releaseTimeout = 30 * time.Second

// Unpacker turns extension archives into directories the browser can load
type Unpacker interface {
	ExtractAll(ctx context.Context, names []string) ([]*extension.Unpacked, error)
}

// Runner drives one launcher run from display start to screenshot
type Runner struct {
	config   *core.Config
	display  core.DisplayPort // nil when the inherited DISPLAY is used
	browser  core.BrowserPort
	unpacker Unpacker
	waiter   core.Waiter
	repo     core.RepositoryPort
	logger   *zap.Logger
}

// NewRunner creates a new run orchestrator
func NewRunner(
	cfg *core.Config,
	display core.DisplayPort,
	browser core.BrowserPort,
	unpacker Unpacker,
	waiter core.Waiter,
	repo core.RepositoryPort,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		config:   cfg,
		display:  display,
		browser:  browser,
		unpacker: unpacker,
		waiter:   waiter,
		repo:     repo,
		logger:   logger,
	}
}

// Run performs a single run and records it. The returned run is never nil.
func (r *Runner) Run(ctx context.Context) (*core.Run, error) {
	run := &core.Run{
		ID:        uuid.NewString(),
		TargetURL: r.config.Target.URL,
		Strategy:  r.config.Wait.Strategy,
		StartedAt: time.Now(),
	}

	r.logger.Info("Run starting",
		zap.String("run_id", run.ID),
		zap.String("target_url", run.TargetURL),
		zap.String("strategy", run.Strategy),
	)

	err := r.checkGates(ctx)
	if err == nil {
		err = r.execute(ctx, run)
	}

	r.finish(ctx, run, err)
	return run, err
}

// checkGates enforces the daily run limit and working hours
func (r *Runner) checkGates(ctx context.Context) error {
	limits := r.config.Limits

	if limits.MaxRunsPerDay > 0 {
		canRun, err := r.repo.CanStartRun(ctx, limits.MaxRunsPerDay)
		if err != nil {
			r.logger.Warn("Failed to check run limit", zap.Error(err))
			canRun = true // Continue if check fails
		}
		if !canRun {
			return fmt.Errorf("%w (limit %d)", core.ErrDailyLimitReached, limits.MaxRunsPerDay)
		}
	}

	if limits.WorkingHoursStart != "" && limits.WorkingHoursEnd != "" {
		within, err := utils.IsWithinWorkingHours(limits.WorkingHoursStart, limits.WorkingHoursEnd)
		if err != nil {
			r.logger.Warn("Failed to check working hours", zap.Error(err))
			within = true // Continue if check fails
		}
		if !within {
			return fmt.Errorf("%w (%s-%s)", core.ErrOutsideWorkingHours, limits.WorkingHoursStart, limits.WorkingHoursEnd)
		}
	}

	return nil
}

func (r *Runner) execute(ctx context.Context, run *core.Run) error {
	// Step 1: virtual display
	displayName := ""
	if r.display != nil {
		name, err := r.display.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start display: %w", err)
		}
		defer func() {
			if err := r.display.Stop(); err != nil {
				r.logger.Error("Failed to stop display", zap.Error(err))
			}
		}()
		displayName = name
	}

	// Step 2: unpack extensions
	r.logger.Info("Extracting extensions...", zap.Strings("archives", r.config.Extensions.Archives))
	unpacked, err := r.unpacker.ExtractAll(ctx, r.config.Extensions.Archives)
	if err != nil {
		return fmt.Errorf("failed to extract extensions: %w", err)
	}
	dirs := make([]string, 0, len(unpacked))
	for _, u := range unpacked {
		dirs = append(dirs, u.Dir)
	}

	// Step 3: workflow descriptor, loaded for the record only
	if path := r.config.Workflow.Descriptor; path != "" {
		d, err := LoadDescriptor(path)
		if err != nil {
			return err
		}
		run.Descriptor = d.Name
		r.logger.Info("Workflow descriptor loaded",
			zap.String("path", d.Path),
			zap.String("name", d.Name),
			zap.Int("nodes", d.NodeCount),
		)
	}

	// Step 4: browser
	if err := r.browser.Launch(ctx, core.LaunchOptions{ExtensionDirs: dirs, Display: displayName}); err != nil {
		return err
	}
	defer r.closeBrowser(ctx)

	// Step 5: target page
	r.logger.Info("Navigating to target", zap.String("url", r.config.Target.URL))
	navCtx, cancel := context.WithTimeout(ctx, r.config.Target.PageLoadTimeout)
	defer cancel()
	if err := r.browser.Navigate(navCtx, r.config.Target.URL); err != nil {
		return err
	}
	if err := r.browser.WaitForBody(ctx, r.config.Target.PageLoadTimeout); err != nil {
		return err
	}
	r.logger.Info("Page loaded, extension workflow running...")

	// Step 6: wait for the extensions to finish
	outcome, err := r.waiter.Wait(ctx, r.browser)
	if err != nil {
		return fmt.Errorf("wait interrupted: %w", err)
	}
	run.Completed = outcome.Completed
	run.Marker = outcome.Marker

	// Step 7: evidence
	if err := r.browser.Screenshot(ctx, r.config.Output.ScreenshotPath, r.config.Output.FullPage); err != nil {
		return err
	}
	run.ScreenshotPath = r.config.Output.ScreenshotPath

	if url, err := r.browser.CurrentURL(ctx); err == nil {
		run.FinalURL = url
	}
	if title, err := r.browser.Title(ctx); err == nil {
		run.PageTitle = title
	}

	return nil
}

// closeBrowser releases the browser even when ctx is already cancelled
func (r *Runner) closeBrowser(ctx context.Context) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	r.logger.Info("Closing browser...")
	if err := r.browser.Close(closeCtx); err != nil {
		r.logger.Error("Failed to close browser", zap.Error(err))
	}
}

// finish stamps the outcome onto the run and persists it
func (r *Runner) finish(ctx context.Context, run *core.Run, runErr error) {
	now := time.Now()
	run.FinishedAt = &now

	switch {
	case runErr == nil:
		run.Status = core.RunStatusSucceeded
	case errors.Is(runErr, core.ErrDailyLimitReached), errors.Is(runErr, core.ErrOutsideWorkingHours):
		run.Status = core.RunStatusSkipped
		run.Error = runErr.Error()
	default:
		run.Status = core.RunStatusFailed
		run.Error = runErr.Error()
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := r.repo.CreateRun(saveCtx, run); err != nil {
		r.logger.Error("Failed to record run", zap.String("run_id", run.ID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Bool("completed", run.Completed),
		zap.String("marker", run.Marker),
		zap.String("duration", utils.FormatDuration(run.Duration())),
	}
	if runErr != nil {
		r.logger.Error("Run finished", append(fields, zap.Error(runErr))...)
		return
	}
	r.logger.Info("Run finished", fields...)
}
