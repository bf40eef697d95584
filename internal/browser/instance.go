package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"go.uber.org/zap"

	"extension-launcher/internal/core"
	"extension-launcher/internal/stealth"
)

// Instance wraps a Rod browser launched with unpacked extensions
type Instance struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	config   *core.BrowserConfig
	logger   *zap.Logger
}

// NewInstance creates a new browser instance
func NewInstance(cfg *core.BrowserConfig, logger *zap.Logger) *Instance {
	return &Instance{
		config: cfg,
		logger: logger,
	}
}

// newLauncher builds the launcher with extension, sandbox and anti-detection flags
func (b *Instance) newLauncher(opts core.LaunchOptions) *launcher.Launcher {
	// Extensions need a headed browser, hence the virtual display
	l := launcher.New().
		Headless(b.config.Headless).
		NoSandbox(b.config.NoSandbox).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", fmt.Sprintf("%d,%d", b.config.WindowWidth, b.config.WindowHeight)).
		Delete("disable-extensions")

	if len(opts.ExtensionDirs) > 0 {
		dirs := strings.Join(opts.ExtensionDirs, ",")
		l = l.Set("load-extension", dirs).
			Set("disable-extensions-except", dirs)
	}

	l = stealth.Apply(l)

	if bin := b.resolveBin(); bin != "" {
		l = l.Bin(bin)
	}

	if b.config.UserDataDir != "" {
		l = l.UserDataDir(b.config.UserDataDir)
	}

	if opts.Display != "" {
		l = l.Env(append(os.Environ(), "DISPLAY="+opts.Display)...)
	}

	return l
}

// resolveBin prefers the configured binary and falls back to a browser found on the system
func (b *Instance) resolveBin() string {
	if b.config.Bin != "" {
		if _, err := os.Stat(b.config.Bin); err == nil {
			return b.config.Bin
		}
		b.logger.Warn("Configured browser binary not found, searching system", zap.String("bin", b.config.Bin))
	}
	if path, has := launcher.LookPath(); has {
		return path
	}
	// Rod downloads its own browser when no binary is set
	return ""
}

// Launch starts the browser and opens a stealth page
func (b *Instance) Launch(ctx context.Context, opts core.LaunchOptions) error {
	l := b.newLauncher(opts).Context(ctx)

	b.logger.Info("Launching browser",
		zap.String("bin", l.Get(flags.Bin)),
		zap.Strings("extensions", opts.ExtensionDirs),
		zap.String("display", opts.Display),
	)

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	b.launcher = l

	b.browser = rod.New().ControlURL(controlURL)
	if err := b.browser.Connect(); err != nil {
		b.launcher.Kill()
		b.browser, b.launcher = nil, nil
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.page, err = rodstealth.Page(b.browser)
	if err != nil {
		b.Close(ctx)
		return fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := b.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.config.WindowWidth,
		Height:            b.config.WindowHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		b.logger.Debug("Failed to set viewport", zap.Error(err))
	}

	if _, err := b.page.Eval(stealth.HideWebdriverJS); err != nil {
		b.logger.Debug("Failed to manually hide webdriver property (likely handled by stealth)", zap.Error(err))
	}

	b.logger.Info("Browser ready with extensions loaded",
		zap.Int("width", b.config.WindowWidth),
		zap.Int("height", b.config.WindowHeight),
	)
	return nil
}

// Navigate loads url and waits for the load event, bounded by ctx.
// Running out of time while waiting for the load event is not an error.
func (b *Instance) Navigate(ctx context.Context, url string) error {
	if b.page == nil {
		return core.ErrBrowserNotLaunched
	}

	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		// Slow subresources delay the load event; the body check decides
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.logger.Warn("Page load event not received in time, continuing", zap.String("url", url))
			return nil
		}
		return fmt.Errorf("failed to wait for page load: %w", err)
	}
	return nil
}

// WaitForBody waits until the document body is present
func (b *Instance) WaitForBody(ctx context.Context, timeout time.Duration) error {
	if b.page == nil {
		return core.ErrBrowserNotLaunched
	}

	if _, err := b.page.Context(ctx).Timeout(timeout).Element("body"); err != nil {
		return fmt.Errorf("page body not found within %s: %w", timeout, err)
	}
	return nil
}

// FirstVisible returns the first selector that matches a visible element.
// Lookup failures for a single selector are skipped.
func (b *Instance) FirstVisible(ctx context.Context, selectors []string) (string, error) {
	if b.page == nil {
		return "", core.ErrBrowserNotLaunched
	}

	page := b.page.Context(ctx)
	for _, selector := range selectors {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		elems, err := page.Elements(selector)
		if err != nil {
			b.logger.Debug("Selector lookup failed", zap.String("selector", selector), zap.Error(err))
			continue
		}

		for _, elem := range elems {
			visible, err := elem.Visible()
			if err != nil {
				continue
			}
			if visible {
				return selector, nil
			}
		}
	}
	return "", nil
}

// Screenshot saves a PNG of the page to path
func (b *Instance) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if b.page == nil {
		return core.ErrBrowserNotLaunched
	}

	data, err := b.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}

	b.logger.Info("Screenshot saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// CurrentURL returns the current page URL
func (b *Instance) CurrentURL(ctx context.Context) (string, error) {
	if b.page == nil {
		return "", core.ErrBrowserNotLaunched
	}

	info, err := b.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.URL, nil
}

// Title returns the current page title
func (b *Instance) Title(ctx context.Context) (string, error) {
	if b.page == nil {
		return "", core.ErrBrowserNotLaunched
	}

	info, err := b.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to get page info: %w", err)
	}
	return info.Title, nil
}

// Close closes the browser and reaps its process
func (b *Instance) Close(ctx context.Context) error {
	if b.browser == nil {
		return nil
	}

	var closeErr error
	if err := b.browser.Close(); err != nil {
		closeErr = fmt.Errorf("failed to close browser: %w", err)
		b.launcher.Kill()
	}

	// A user supplied profile must survive the run
	if b.config.UserDataDir == "" {
		b.launcher.Cleanup()
	}

	b.browser = nil
	b.page = nil
	b.launcher = nil

	if closeErr != nil {
		return closeErr
	}

	b.logger.Info("Browser closed")
	return nil
}
