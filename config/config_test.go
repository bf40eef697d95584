package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extension-launcher/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTOMATION_TARGET_URL", "https://example.com/your-form-page")

	cfg, err := Load(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/your-form-page", cfg.Target.URL)
	assert.Equal(t, 30*time.Second, cfg.Target.PageLoadTimeout)
	assert.Equal(t, "/usr/bin/chromium-browser", cfg.Browser.Bin)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.True(t, cfg.Browser.NoSandbox)
	assert.True(t, cfg.Display.Enabled)
	assert.Equal(t, 99, cfg.Display.Number)
	assert.Equal(t, 2*time.Second, cfg.Display.StartupTimeout)
	assert.Equal(t, []string{"automa.crx", "captcha-solver.crx"}, cfg.Extensions.Archives)
	assert.Equal(t, "/tmp/extensions", cfg.Extensions.ExtractDir)
	assert.Equal(t, core.WaitStrategyCompletion, cfg.Wait.Strategy)
	assert.Equal(t, 120*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Wait.PollInterval)
	assert.Equal(t, []string{".success-message", ".thank-you", "[data-success]", ".form-success", "#success"}, cfg.Wait.SuccessSelectors)
	require.Len(t, cfg.Wait.Windows, 3)
	assert.Equal(t, core.WaitWindow{Name: "captcha", Duration: 90 * time.Second}, cfg.Wait.Windows[1])
	assert.Equal(t, "/tmp/result.png", cfg.Output.ScreenshotPath)
	assert.Equal(t, "data/runs.db", cfg.Database.Path)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
target:
  url: https://forms.example.org/contact
wait:
  strategy: fixed
  windows:
    - name: settle
      duration: 5s
    - name: captcha
      duration: 1m
extensions:
  archives: [one.crx]
limits:
  max_runs_per_day: 4
  working_hours_start: "08:00"
  working_hours_end: "20:00"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://forms.example.org/contact", cfg.Target.URL)
	assert.Equal(t, core.WaitStrategyFixed, cfg.Wait.Strategy)
	assert.Equal(t, []core.WaitWindow{
		{Name: "settle", Duration: 5 * time.Second},
		{Name: "captcha", Duration: time.Minute},
	}, cfg.Wait.Windows)
	assert.Equal(t, []string{"one.crx"}, cfg.Extensions.Archives)
	assert.Equal(t, 4, cfg.Limits.MaxRunsPerDay)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("AUTOMATION_WAIT_TIMEOUT", "45s")
	t.Setenv("AUTOMATION_DISPLAY_NUMBER", "7")

	cfg, err := Load(writeConfig(t, "target:\n  url: https://a.example\nwait:\n  timeout: 10s\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 7, cfg.Display.Number)
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("AUTOMATION_TARGET_URL", "https://env.example")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("url", "", "")
	fs.String("strategy", "", "")
	fs.Duration("timeout", 0, "")
	fs.Bool("no-display", false, "")
	require.NoError(t, fs.Parse([]string{"--url", "https://flag.example", "--strategy", "fixed", "--no-display"}))

	cfg, err := Load(writeConfig(t, "target:\n  url: https://file.example\n"), fs)
	require.NoError(t, err)
	assert.Equal(t, "https://flag.example", cfg.Target.URL)
	assert.Equal(t, core.WaitStrategyFixed, cfg.Wait.Strategy)
	assert.False(t, cfg.Display.Enabled)
	// Unset flags keep the configured default
	assert.Equal(t, 120*time.Second, cfg.Wait.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestReadSkipsValidation(t *testing.T) {
	cfg, err := Read(writeConfig(t, "{}\n"), nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Target.URL)
	assert.Equal(t, "data/runs.db", cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	valid := func() *core.Config {
		cfg, err := Read(writeConfig(t, "target:\n  url: https://a.example\n"), nil)
		require.NoError(t, err)
		require.NoError(t, Validate(cfg))
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*core.Config)
	}{
		{"missing url", func(c *core.Config) { c.Target.URL = "" }},
		{"zero page load timeout", func(c *core.Config) { c.Target.PageLoadTimeout = 0 }},
		{"unknown strategy", func(c *core.Config) { c.Wait.Strategy = "sometimes" }},
		{"zero wait timeout", func(c *core.Config) { c.Wait.Timeout = 0 }},
		{"zero poll interval", func(c *core.Config) { c.Wait.PollInterval = 0 }},
		{"no selectors", func(c *core.Config) { c.Wait.SuccessSelectors = nil }},
		{"negative window", func(c *core.Config) {
			c.Wait.Strategy = core.WaitStrategyFixed
			c.Wait.Windows = []core.WaitWindow{{Name: "x", Duration: -time.Second}}
		}},
		{"no archives", func(c *core.Config) { c.Extensions.Archives = nil }},
		{"no extract dir", func(c *core.Config) { c.Extensions.ExtractDir = "" }},
		{"no screenshot path", func(c *core.Config) { c.Output.ScreenshotPath = "" }},
		{"no database", func(c *core.Config) { c.Database.Path = "" }},
		{"half working hours", func(c *core.Config) { c.Limits.WorkingHoursStart = "09:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}
