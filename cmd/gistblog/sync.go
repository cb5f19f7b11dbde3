package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gistblog/internal/scheduler"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSync(ctx)
		},
	}
}

func runSync(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	svc, cleanup, err := a.newSyncService()
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.NewScheduler(svc, a.cfg.Sync.Interval, a.cfg.Sync.Timeout, a.logger)
	_, err = sched.RunOnce(ctx)
	return err
}
