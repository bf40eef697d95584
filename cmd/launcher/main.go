package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"extension-launcher/internal/core"
)

// errRunFailed signals a failed run that has already been reported
var errRunFailed = errors.New("run failed")

var configPath string

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "launcher",
		Short: "Launch Chromium with unpacked extensions against a target page",
		Long: `launcher starts a virtual display, unpacks the configured extension archives,
opens the target URL in Chromium with those extensions loaded, waits for the
extensions to finish and saves a screenshot of the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: ./config.yaml or ./config/config.yaml)")
	addRunFlags(root)

	root.AddCommand(newRunCmd(), newExtractCmd(), newHistoryCmd(), newScheduleCmd())
	return root
}

// newLogger builds the zap logger described by the log section
func newLogger(cfg *core.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Log.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
		}
		zapCfg.Level = level
	}

	return zapCfg.Build()
}
