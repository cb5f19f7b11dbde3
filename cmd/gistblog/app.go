package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gistblog/internal/config"
	"gistblog/internal/publisher"
	"gistblog/internal/service"
	"gistblog/internal/source/github"
	"gistblog/internal/storage/postgres"
	"gistblog/migrations"
)

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	posts       *postgres.PostStore
	checkpoints *postgres.CheckpointStore
	txManager   *postgres.TransactionManager
}

func newApp(ctx context.Context) (*app, error) {
	logger := setupLogger("info")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		posts:       postgres.NewPostStore(db),
		checkpoints: postgres.NewCheckpointStore(db),
		txManager:   postgres.NewTransactionManager(db),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("close database", "error", err)
	}
}

func (a *app) migrate(ctx context.Context) error {
	applied, err := postgres.NewMigrator(a.db, migrations.FS, a.logger).Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("database schema up to date", "applied", len(applied))
	return nil
}

// newSyncService builds the syncer. The returned cleanup closes the publisher
// when one is configured.
func (a *app) newSyncService() (*service.SyncService, func(), error) {
	source, err := github.New(github.Config{
		Username:       a.cfg.GitHub.Username,
		Token:          a.cfg.GitHub.Token,
		BaseURL:        a.cfg.GitHub.BaseURL,
		PageSize:       a.cfg.GitHub.PageSize,
		Timeout:        a.cfg.GitHub.Timeout,
		RateLimit:      a.cfg.GitHub.RateLimit,
		MaxAttempts:    a.cfg.GitHub.Retry.MaxAttempts,
		InitialBackoff: a.cfg.GitHub.Retry.InitialBackoff,
		MaxBackoff:     a.cfg.GitHub.Retry.MaxBackoff,
	}, a.checkpoints, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create github source: %w", err)
	}

	var pub service.Publisher
	cleanup := func() {}
	if a.cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        a.cfg.RabbitMQ.URL,
			Exchange:   a.cfg.RabbitMQ.Exchange,
			RoutingKey: a.cfg.RabbitMQ.RoutingKey,
			QueueName:  a.cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		pub = rabbitMQ
		cleanup = func() {
			if err := rabbitMQ.Close(); err != nil {
				a.logger.Error("close rabbitmq", "error", err)
			}
		}
	}

	svc := service.NewSyncService(
		source,
		a.posts,
		a.txManager,
		a.txManager,
		pub,
		a.logger,
		a.cfg.Sync,
	)
	return svc, cleanup, nil
}
