package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"gistblog/internal/domain"
)

// Source lists updated gists and owns the sync checkpoint.
type Source interface {
	ListUpdatedGists(ctx context.Context) ([]domain.Gist, error)
	UpdateCheckpoint(ctx context.Context, gists []domain.Gist) error
	FetchContent(ctx context.Context, url string) (string, error)
}

type PostStore interface {
	GetPost(ctx context.Context, gistID string) (*domain.Post, error)
	GetSlugCounter(ctx context.Context, slug string) (int, bool, error)
	SavePost(ctx context.Context, post *domain.Post) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SyncLock is a cross-process lock scoped to the transaction carried by ctx.
type SyncLock interface {
	TryLock(ctx context.Context) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, post *domain.Post, isNew bool) error
	Close() error
}
