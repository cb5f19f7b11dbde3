package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gistblog/internal/config"
	"gistblog/internal/domain"
	"gistblog/internal/hash"
	"gistblog/internal/metrics"
	"gistblog/internal/slug"
)

type SyncService struct {
	source    Source
	posts     PostStore
	txManager TransactionManager
	lock      SyncLock
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig

	running sync.Mutex
}

type syncedPost struct {
	post  domain.Post
	isNew bool
}

// NewSyncService wires a syncer. publisher may be nil.
func NewSyncService(
	source Source,
	posts PostStore,
	txManager TransactionManager,
	lock SyncLock,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	if cfg.BlogTag == "" {
		cfg.BlogTag = config.DefaultBlogTag
	}
	return &SyncService{
		source:    source,
		posts:     posts,
		txManager: txManager,
		lock:      lock,
		publisher: publisher,
		logger:    logger.With("component", "syncer"),
		config:    cfg,
	}
}

// Sync runs one cycle: every gist updated since the checkpoint is turned into a post
// or skipped, then the checkpoint moves past the whole batch. All writes share one
// transaction; any error discards them.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	if !s.running.TryLock() {
		metrics.RecordSyncRun(metrics.StatusSkipped, 0)
		return nil, domain.ErrSyncInProgress
	}
	defer s.running.Unlock()

	startTime := time.Now()
	s.logger.Info("starting sync", "blog_tag", s.config.BlogTag)

	stats := &domain.SyncStats{}
	var synced []syncedPost

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.lock.TryLock(txCtx)
		if err != nil {
			return fmt.Errorf("acquire sync lock: %w", err)
		}
		if !locked {
			return domain.ErrSyncInProgress
		}

		gists, err := s.source.ListUpdatedGists(txCtx)
		if err != nil {
			return fmt.Errorf("list updated gists: %w", err)
		}
		stats.Fetched = len(gists)

		for i := range gists {
			post, isNew, err := s.syncGist(txCtx, &gists[i])
			if err != nil {
				return fmt.Errorf("sync gist %s: %w", gists[i].ID, err)
			}
			if post == nil {
				stats.Skipped++
				continue
			}

			if isNew {
				stats.Created++
			} else {
				stats.Updated++
			}
			synced = append(synced, syncedPost{post: *post, isNew: isNew})
		}

		if err := s.source.UpdateCheckpoint(txCtx, gists); err != nil {
			return fmt.Errorf("update checkpoint: %w", err)
		}
		return nil
	})

	stats.Duration = time.Since(startTime)

	if errors.Is(err, domain.ErrSyncInProgress) {
		metrics.RecordSyncRun(metrics.StatusSkipped, stats.Duration.Seconds())
		return nil, err
	}
	if err != nil {
		metrics.RecordSyncRun(metrics.StatusError, stats.Duration.Seconds())
		s.logger.Error("sync failed", "error", err, "duration", stats.Duration)
		return nil, err
	}

	s.publish(ctx, synced, stats)

	metrics.RecordSyncRun(metrics.StatusSuccess, stats.Duration.Seconds())
	metrics.RecordSyncPosts(metrics.ResultCreated, stats.Created)
	metrics.RecordSyncPosts(metrics.ResultUpdated, stats.Updated)
	metrics.RecordSyncPosts(metrics.ResultSkipped, stats.Skipped)

	s.logger.Info("sync completed",
		"fetched", stats.Fetched,
		"created", stats.Created,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

// syncGist returns a nil post when the gist is not a blog post.
func (s *SyncService) syncGist(ctx context.Context, gist *domain.Gist) (*domain.Post, bool, error) {
	title := gist.Title()
	if title == "" {
		s.logger.Debug("skipping gist without title", "gist_id", gist.ID)
		return nil, false, nil
	}
	if !gist.HasTag(s.config.BlogTag) {
		s.logger.Debug("skipping gist without blog tag", "gist_id", gist.ID)
		return nil, false, nil
	}
	contentURL, ok := gist.MarkdownFileURL()
	if !ok {
		s.logger.Debug("skipping gist without markdown file", "gist_id", gist.ID)
		return nil, false, nil
	}

	content, err := s.source.FetchContent(ctx, contentURL)
	if err != nil {
		return nil, false, err
	}

	postSlug := slug.Make(title)
	counter, isNew, err := s.slugCounter(ctx, gist.ID, postSlug)
	if err != nil {
		return nil, false, err
	}

	post := &domain.Post{
		GistID:      gist.ID,
		HTMLURL:     gist.HTMLURL,
		ContentURL:  contentURL,
		Content:     content,
		ContentHash: hash.SHA256Hex(content),
		Title:       title,
		Description: gist.ProcessedDescription(),
		Tags:        gist.TagList(),
		CreatedAt:   gist.CreatedAt,
		UpdatedAt:   gist.UpdatedAt,
		OwnerID:     gist.OwnerID,
		Public:      gist.Public,
		Slug:        postSlug,
		SlugCounter: counter,
	}

	if err := s.posts.SavePost(ctx, post); err != nil {
		return nil, false, fmt.Errorf("save post: %w", err)
	}

	s.logger.Debug("post saved",
		"gist_id", gist.ID,
		"slug", post.SlugWithCounter(),
		"new", isNew,
	)
	return post, isNew, nil
}

// slugCounter keeps the counter of an already synced gist; a new gist takes the
// next free counter for its slug.
func (s *SyncService) slugCounter(ctx context.Context, gistID, postSlug string) (int, bool, error) {
	existing, err := s.posts.GetPost(ctx, gistID)
	if err != nil {
		return 0, false, fmt.Errorf("get post: %w", err)
	}
	if existing != nil {
		return existing.SlugCounter, false, nil
	}

	highest, found, err := s.posts.GetSlugCounter(ctx, postSlug)
	if err != nil {
		return 0, false, fmt.Errorf("get slug counter: %w", err)
	}
	if !found {
		return 0, true, nil
	}
	return highest + 1, true, nil
}

func (s *SyncService) publish(ctx context.Context, synced []syncedPost, stats *domain.SyncStats) {
	if s.publisher == nil {
		return
	}

	failed := 0
	for i := range synced {
		if err := s.publisher.Publish(ctx, &synced[i].post, synced[i].isNew); err != nil {
			failed++
			s.logger.Warn("publish post event failed",
				"gist_id", synced[i].post.GistID,
				"error", err,
			)
			continue
		}
		stats.Published++
	}

	metrics.RecordSyncPosts(metrics.ResultPublished, stats.Published)
	metrics.RecordSyncPosts(metrics.ResultPublishFailed, failed)
}
