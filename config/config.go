package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"extension-launcher/internal/core"
)

// flagKeys maps CLI flag names to configuration keys
var flagKeys = map[string]string{
	"url":        "target.url",
	"strategy":   "wait.strategy",
	"timeout":    "wait.timeout",
	"screenshot": "output.screenshot_path",
	"workflow":   "workflow.descriptor",
	"browser":    "browser.bin",
	"db":         "database.path",
}

// Load reads and validates the configuration. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*core.Config, error) {
	cfg, err := Read(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Read loads configuration from config.yaml, .env, environment variables and CLI flags
// without validating it
func Read(configPath string, flags *pflag.FlagSet) (*core.Config, error) {
	cfg := &core.Config{}
	v := viper.New()

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AUTOMATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, continue with defaults and env vars
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// --no-display is the inverse of display.enabled
	if flags != nil {
		if f := flags.Lookup("no-display"); f != nil && f.Changed {
			noDisplay, _ := flags.GetBool("no-display")
			cfg.Display.Enabled = !noDisplay
		}
	}

	return cfg, nil
}

// bindFlags binds every known flag present in the set
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Target
	v.SetDefault("target.url", "")
	v.SetDefault("target.page_load_timeout", "30s")

	// Browser
	v.SetDefault("browser.bin", "/usr/bin/chromium-browser")
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.element_timeout", "10s")
	v.SetDefault("browser.user_data_dir", "")

	// Display
	v.SetDefault("display.enabled", true)
	v.SetDefault("display.binary", "Xvfb")
	v.SetDefault("display.number", 99)
	v.SetDefault("display.depth", 24)
	v.SetDefault("display.startup_timeout", "2s")

	// Extensions
	v.SetDefault("extensions.source_dir", "/opt/automation/extensions")
	v.SetDefault("extensions.extract_dir", "/tmp/extensions")
	v.SetDefault("extensions.archives", []string{"automa.crx", "captcha-solver.crx"})

	// Workflow descriptor (loaded, never executed)
	v.SetDefault("workflow.descriptor", "")

	// Wait
	v.SetDefault("wait.strategy", core.WaitStrategyCompletion)
	v.SetDefault("wait.timeout", "120s")
	v.SetDefault("wait.poll_interval", "2s")
	v.SetDefault("wait.poll_jitter", "0s")
	v.SetDefault("wait.success_selectors", []string{
		".success-message",
		".thank-you",
		"[data-success]",
		".form-success",
		"#success",
	})
	v.SetDefault("wait.windows", []map[string]interface{}{
		{"name": "form_fill", "duration": "30s"},
		{"name": "captcha", "duration": "90s"},
		{"name": "post_submit", "duration": "10s"},
	})

	// Output
	v.SetDefault("output.screenshot_path", "/tmp/result.png")
	v.SetDefault("output.full_page", false)

	// Database
	v.SetDefault("database.path", "data/runs.db")

	// Limits
	v.SetDefault("limits.max_runs_per_day", 0)
	v.SetDefault("limits.working_hours_start", "")
	v.SetDefault("limits.working_hours_end", "")

	// Logging
	v.SetDefault("log.development", true)
	v.SetDefault("log.level", "info")
}

// Validate validates that required configuration fields are set
func Validate(cfg *core.Config) error {
	if cfg.Target.URL == "" {
		return fmt.Errorf("target.url is required (set via config, --url or AUTOMATION_TARGET_URL env var)")
	}
	if cfg.Target.PageLoadTimeout <= 0 {
		return fmt.Errorf("target.page_load_timeout must be positive")
	}
	switch cfg.Wait.Strategy {
	case core.WaitStrategyCompletion:
		if cfg.Wait.Timeout <= 0 {
			return fmt.Errorf("wait.timeout must be positive")
		}
		if cfg.Wait.PollInterval <= 0 {
			return fmt.Errorf("wait.poll_interval must be positive")
		}
		if len(cfg.Wait.SuccessSelectors) == 0 {
			return fmt.Errorf("wait.success_selectors must not be empty for the completion strategy")
		}
	case core.WaitStrategyFixed:
		for i, w := range cfg.Wait.Windows {
			if w.Duration < 0 {
				return fmt.Errorf("wait.windows[%d] (%s) has a negative duration", i, w.Name)
			}
		}
	default:
		return fmt.Errorf("wait.strategy must be %q or %q, got %q",
			core.WaitStrategyCompletion, core.WaitStrategyFixed, cfg.Wait.Strategy)
	}
	if len(cfg.Extensions.Archives) == 0 {
		return fmt.Errorf("extensions.archives must list at least one archive")
	}
	if cfg.Extensions.ExtractDir == "" {
		return fmt.Errorf("extensions.extract_dir is required")
	}
	if cfg.Output.ScreenshotPath == "" {
		return fmt.Errorf("output.screenshot_path is required")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Display.Enabled && cfg.Display.Number < 0 {
		return fmt.Errorf("display.number must not be negative")
	}
	if (cfg.Limits.WorkingHoursStart == "") != (cfg.Limits.WorkingHoursEnd == "") {
		return fmt.Errorf("limits.working_hours_start and limits.working_hours_end must be set together")
	}
	return nil
}
