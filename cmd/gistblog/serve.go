package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gistblog/internal/markdown"
	"gistblog/internal/ogimage"
	"gistblog/internal/scheduler"
	"gistblog/internal/web"
)

func newServeCmd() *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the blog and keep it in sync with GitHub",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, noSync)
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "serve only, without the background syncer")
	return cmd
}

func runServe(ctx context.Context, noSync bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(ctx); err != nil {
		return err
	}

	cards, err := ogimage.NewGenerator()
	if err != nil {
		return fmt.Errorf("create og image generator: %w", err)
	}

	server, err := web.New(a.cfg.Server, a.cfg.Blog, web.Deps{
		Posts:    a.posts,
		Tx:       a.txManager,
		Markdown: markdown.New(a.cfg.Server.SanitizeHTML),
		Cards:    cards,
		Avatar:   web.NewAvatarLoader(a.cfg.Blog, &http.Client{Timeout: 10 * time.Second}),
		Health:   a.db.PingContext,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}

	var sched *scheduler.Scheduler
	if !noSync {
		svc, cleanup, err := a.newSyncService()
		if err != nil {
			return err
		}
		defer cleanup()
		sched = scheduler.NewScheduler(svc, a.cfg.Sync.Interval, a.cfg.Sync.Timeout, a.logger)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	if sched != nil {
		g.Go(func() error {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	a.logger.Info("gistblog started",
		"addr", a.cfg.Server.Addr,
		"sync", !noSync,
		"interval", a.cfg.Sync.Interval,
		"blog_tag", a.cfg.Sync.BlogTag,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("gistblog stopped")
	return nil
}
