package core

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBrowserNotLaunched is returned by browser operations before Launch
	ErrBrowserNotLaunched = errors.New("browser not launched")

	// ErrDailyLimitReached is returned when limits.max_runs_per_day is exhausted
	ErrDailyLimitReached = errors.New("daily run limit reached")

	// ErrOutsideWorkingHours is returned when a run starts outside the configured window
	ErrOutsideWorkingHours = errors.New("outside working hours")
)

// BrowserPort defines the interface for browser operations
type BrowserPort interface {
	// Launch starts the browser with the unpacked extensions loaded
	Launch(ctx context.Context, opts LaunchOptions) error

	// Navigate loads a URL in the active page
	Navigate(ctx context.Context, url string) error

	// WaitForBody waits until the document body is present
	WaitForBody(ctx context.Context, timeout time.Duration) error

	// FirstVisible returns the first selector matching a visible element, or ""
	FirstVisible(ctx context.Context, selectors []string) (string, error)

	// Screenshot saves a PNG of the active page to path
	Screenshot(ctx context.Context, path string, fullPage bool) error

	// CurrentURL returns the current page URL
	CurrentURL(ctx context.Context) (string, error)

	// Title returns the current page title
	Title(ctx context.Context) (string, error)

	// Close closes the browser and releases its process
	Close(ctx context.Context) error
}

// DisplayPort defines the interface for the virtual display server
type DisplayPort interface {
	// Start brings the display up and returns its name (":99")
	Start(ctx context.Context) (string, error)

	// Stop tears the display down if this process started it
	Stop() error
}

// Waiter blocks until the page signals completion or its budget runs out
type Waiter interface {
	Wait(ctx context.Context, browser BrowserPort) (*WaitOutcome, error)
}

// RepositoryPort defines the interface for run history persistence
type RepositoryPort interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*Run, error)

	// Rate limiting
	GetTodayRunCount(ctx context.Context) (int64, error)
	CanStartRun(ctx context.Context, dailyLimit int) (bool, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
