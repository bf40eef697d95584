package workflows

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"extension-launcher/internal/core"
	"extension-launcher/internal/stealth"
)

// NewWaiter returns the wait strategy selected by cfg.Strategy.
// lookupTimeout bounds each marker lookup of the completion strategy.
func NewWaiter(cfg *core.WaitConfig, lookupTimeout time.Duration, logger *zap.Logger) (core.Waiter, error) {
	switch cfg.Strategy {
	case core.WaitStrategyCompletion:
		return NewCompletionWaiter(cfg, lookupTimeout, logger), nil
	case core.WaitStrategyFixed:
		return NewFixedWaiter(cfg.Windows, logger), nil
	default:
		return nil, fmt.Errorf("unknown wait strategy %q", cfg.Strategy)
	}
}

// CompletionWaiter polls the page for a visible success marker left by the automation extension
type CompletionWaiter struct {
	selectors []string
	timeout   time.Duration
	interval  time.Duration
	spread    time.Duration
	lookup    time.Duration
	jitter    *stealth.Jitter
	logger    *zap.Logger
}

// NewCompletionWaiter creates a completion-signal waiter
func NewCompletionWaiter(cfg *core.WaitConfig, lookupTimeout time.Duration, logger *zap.Logger) *CompletionWaiter {
	return &CompletionWaiter{
		selectors: cfg.SuccessSelectors,
		timeout:   cfg.Timeout,
		interval:  cfg.PollInterval,
		spread:    cfg.PollJitter,
		lookup:    lookupTimeout,
		jitter:    stealth.NewJitter(),
		logger:    logger,
	}
}

// Wait checks immediately and then once per poll interval until a marker is visible
// or the timeout elapses. Running out of time is reported as an incomplete outcome, not an error.
func (w *CompletionWaiter) Wait(ctx context.Context, browser core.BrowserPort) (*core.WaitOutcome, error) {
	w.logger.Info("Waiting for workflow completion",
		zap.Duration("timeout", w.timeout),
		zap.Strings("selectors", w.selectors),
	)

	start := time.Now()
	deadline := start.Add(w.timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		marker, err := w.check(ctx, browser, remaining)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.logger.Debug("Success marker check failed", zap.Error(err))
		} else if marker != "" {
			elapsed := time.Since(start)
			w.logger.Info("Success element detected",
				zap.String("selector", marker),
				zap.Duration("elapsed", elapsed),
			)
			return &core.WaitOutcome{Completed: true, Marker: marker, Elapsed: elapsed}, nil
		}

		remaining = time.Until(deadline)
		if remaining <= 0 {
			break
		}

		pause := w.jitter.Interval(w.interval, w.spread)
		if pause > remaining {
			pause = remaining
		}
		if err := stealth.Sleep(ctx, pause); err != nil {
			return nil, err
		}
	}

	elapsed := time.Since(start)
	w.logger.Warn("Workflow completion not detected before timeout", zap.Duration("timeout", w.timeout))
	return &core.WaitOutcome{Completed: false, Elapsed: elapsed}, nil
}

// check runs one marker lookup bounded by the lookup timeout and the time left
func (w *CompletionWaiter) check(ctx context.Context, browser core.BrowserPort, remaining time.Duration) (string, error) {
	budget := remaining
	if w.lookup > 0 && w.lookup < budget {
		budget = w.lookup
	}

	lookupCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return browser.FirstVisible(lookupCtx, w.selectors)
}

// FixedWaiter sleeps through a fixed sequence of windows while the extensions work unobserved
type FixedWaiter struct {
	windows []core.WaitWindow
	logger  *zap.Logger
}

// NewFixedWaiter creates a fixed-window waiter
func NewFixedWaiter(windows []core.WaitWindow, logger *zap.Logger) *FixedWaiter {
	return &FixedWaiter{
		windows: windows,
		logger:  logger,
	}
}

// Wait sleeps each window in order
func (w *FixedWaiter) Wait(ctx context.Context, browser core.BrowserPort) (*core.WaitOutcome, error) {
	start := time.Now()

	for i, window := range w.windows {
		w.logger.Info("Waiting",
			zap.String("window", window.Name),
			zap.Duration("duration", window.Duration),
			zap.Int("step", i+1),
			zap.Int("of", len(w.windows)),
		)
		if err := stealth.Sleep(ctx, window.Duration); err != nil {
			return nil, err
		}
	}

	return &core.WaitOutcome{Completed: true, Elapsed: time.Since(start)}, nil
}
