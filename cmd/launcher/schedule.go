package main

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScheduleCmd() *cobra.Command {
	var cronExpr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Repeat runs on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			cronLog := cronLogger{a.logger.Sugar()}

			c := cron.New(cron.WithChain(
				cron.Recover(cronLog),
				cron.SkipIfStillRunning(cronLog),
			))

			if _, err := c.AddFunc(cronExpr, func() {
				// Failures are already logged and recorded
				_ = a.runAndReport(ctx)
			}); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
			}

			a.logger.Info("Scheduler started", zap.String("cron", cronExpr))
			c.Start()

			<-ctx.Done()
			a.logger.Info("Stopping scheduler, waiting for the active run")
			<-c.Stop().Done()
			return nil
		},
	}

	addRunFlags(cmd)
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron schedule, e.g. \"*/30 9-17 * * 1-5\"")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
