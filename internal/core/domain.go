package core

import "time"

// Run statuses
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// Wait strategies
const (
	WaitStrategyCompletion = "completion"
	WaitStrategyFixed      = "fixed"
)

// Run represents a single launcher run persisted in the database
type Run struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	TargetURL      string     `gorm:"not null" json:"target_url"`
	Strategy       string     `gorm:"not null" json:"strategy"`
	Status         string     `gorm:"index;not null" json:"status"` // succeeded, failed, skipped
	Completed      bool       `json:"completed"`                    // completion signal seen (or all windows elapsed)
	Marker         string     `json:"marker,omitempty"`             // success selector that matched
	ScreenshotPath string     `json:"screenshot_path,omitempty"`
	FinalURL       string     `json:"final_url,omitempty"`
	PageTitle      string     `json:"page_title,omitempty"`
	Descriptor     string     `json:"descriptor,omitempty"` // workflow descriptor name, if one was loaded
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt      time.Time  `gorm:"index;not null" json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero if it never finished
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// WaitOutcome is the result of a wait strategy
type WaitOutcome struct {
	Completed bool
	Marker    string
	Elapsed   time.Duration
}

// LaunchOptions holds per-run browser launch parameters
type LaunchOptions struct {
	ExtensionDirs []string
	Display       string // e.g. ":99"; empty keeps the inherited environment
}

// WaitWindow is a named fixed sleep used by the fixed wait strategy
type WaitWindow struct {
	Name     string        `mapstructure:"name"`
	Duration time.Duration `mapstructure:"duration"`
}

// TargetConfig describes the page to open
type TargetConfig struct {
	URL             string        `mapstructure:"url"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
}

// BrowserConfig holds browser launch parameters
type BrowserConfig struct {
	Bin            string        `mapstructure:"bin"`
	WindowWidth    int           `mapstructure:"window_width"`
	WindowHeight   int           `mapstructure:"window_height"`
	NoSandbox      bool          `mapstructure:"no_sandbox"`
	Headless       bool          `mapstructure:"headless"`
	ElementTimeout time.Duration `mapstructure:"element_timeout"` // Upper bound for single element lookups
	UserDataDir    string        `mapstructure:"user_data_dir"`
}

// DisplayConfig holds virtual display parameters
type DisplayConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Binary         string        `mapstructure:"binary"`
	Number         int           `mapstructure:"number"`
	Depth          int           `mapstructure:"depth"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
}

// ExtensionsConfig locates the extension archives
type ExtensionsConfig struct {
	SourceDir  string   `mapstructure:"source_dir"`
	ExtractDir string   `mapstructure:"extract_dir"`
	Archives   []string `mapstructure:"archives"`
}

// WaitConfig selects and tunes the wait strategy
type WaitConfig struct {
	Strategy         string        `mapstructure:"strategy"` // completion or fixed
	Timeout          time.Duration `mapstructure:"timeout"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	PollJitter       time.Duration `mapstructure:"poll_jitter"`
	SuccessSelectors []string      `mapstructure:"success_selectors"`
	Windows          []WaitWindow  `mapstructure:"windows"`
}

// LimitsConfig holds run limits and working hours
type LimitsConfig struct {
	MaxRunsPerDay     int    `mapstructure:"max_runs_per_day"`    // 0 means unlimited
	WorkingHoursStart string `mapstructure:"working_hours_start"` // Format: "09:00"
	WorkingHoursEnd   string `mapstructure:"working_hours_end"`   // Format: "17:00"
}

// Config represents the application configuration
type Config struct {
	Target     TargetConfig     `mapstructure:"target"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Display    DisplayConfig    `mapstructure:"display"`
	Extensions ExtensionsConfig `mapstructure:"extensions"`
	Wait       WaitConfig       `mapstructure:"wait"`
	Limits     LimitsConfig     `mapstructure:"limits"`

	Workflow struct {
		Descriptor string `mapstructure:"descriptor"`
	} `mapstructure:"workflow"`

	Output struct {
		ScreenshotPath string `mapstructure:"screenshot_path"`
		FullPage       bool   `mapstructure:"full_page"`
	} `mapstructure:"output"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Log struct {
		Development bool   `mapstructure:"development"`
		Level       string `mapstructure:"level"`
	} `mapstructure:"log"`
}
