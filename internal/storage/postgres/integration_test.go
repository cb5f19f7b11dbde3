//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"gistblog/internal/domain"
	"gistblog/internal/testutil"
	"gistblog/migrations"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	migrator := NewMigrator(db, migrations.FS, slog.New(slog.NewTextHandler(io.Discard, nil)))
	applied, err := migrator.Up(s.ctx)
	s.Require().NoError(err)
	s.Require().Equal([]string{"001_create_posts", "002_create_sync_checkpoint"}, applied)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM posts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_checkpoint")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) savePosts(n int) {
	store := NewPostStore(s.db)
	for i := 0; i < n; i++ {
		post := testutil.NewPost(i)
		s.Require().NoError(store.SavePost(s.ctx, &post))
	}
}

func (s *PostgresIntegrationSuite) TestMigrator_UpIsIdempotent() {
	migrator := NewMigrator(s.db, migrations.FS, slog.New(slog.NewTextHandler(io.Discard, nil)))

	applied, err := migrator.Up(s.ctx)
	s.NoError(err)
	s.Empty(applied)
}

func (s *PostgresIntegrationSuite) TestPostStore_SaveAndGet() {
	store := NewPostStore(s.db)
	post := testutil.NewPost(1)
	post.Tags = []string{"blog", "go"}

	s.Require().NoError(store.SavePost(s.ctx, &post))

	got, err := store.GetPost(s.ctx, post.GistID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(post, *got)
}

func (s *PostgresIntegrationSuite) TestPostStore_GetMissing() {
	store := NewPostStore(s.db)

	got, err := store.GetPost(s.ctx, "missing")
	s.NoError(err)
	s.Nil(got)

	got, err = store.GetPostBySlug(s.ctx, "missing-0")
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestPostStore_SaveUpdatesExisting() {
	store := NewPostStore(s.db)
	post := testutil.NewPost(1)
	s.Require().NoError(store.SavePost(s.ctx, &post))

	post.Content = "# Changed\n"
	post.ContentHash = "f" + post.ContentHash[1:]
	post.UpdatedAt = post.UpdatedAt.Add(time.Hour)
	s.Require().NoError(store.SavePost(s.ctx, &post))

	got, err := store.GetPost(s.ctx, post.GistID)
	s.Require().NoError(err)
	s.Equal("# Changed\n", got.Content)
	s.Equal(post.UpdatedAt, got.UpdatedAt)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM posts"))
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestPostStore_UniquenessViolation() {
	store := NewPostStore(s.db)
	first := testutil.NewPost(1)
	s.Require().NoError(store.SavePost(s.ctx, &first))

	second := testutil.NewPost(2)
	second.Slug = first.Slug
	second.SlugCounter = first.SlugCounter

	err := store.SavePost(s.ctx, &second)
	s.Error(err)
	s.True(errors.Is(err, domain.ErrUniquenessViolation))
}

func (s *PostgresIntegrationSuite) TestPostStore_GetSlugCounter() {
	store := NewPostStore(s.db)

	_, ok, err := store.GetSlugCounter(s.ctx, "same-title")
	s.NoError(err)
	s.False(ok)

	for i, counter := range []int{0, 1, 3} {
		post := testutil.NewPost(i)
		post.Slug = "same-title"
		post.SlugCounter = counter
		s.Require().NoError(store.SavePost(s.ctx, &post))
	}

	counter, ok, err := store.GetSlugCounter(s.ctx, "same-title")
	s.NoError(err)
	s.True(ok)
	s.Equal(3, counter)
}

func (s *PostgresIntegrationSuite) TestPostStore_GetPostBySlug() {
	store := NewPostStore(s.db)
	for i, counter := range []int{0, 1} {
		post := testutil.NewPost(i)
		post.Slug = "hello"
		post.SlugCounter = counter
		s.Require().NoError(store.SavePost(s.ctx, &post))
	}

	got, err := store.GetPostBySlug(s.ctx, "hello-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(testutil.NewPost(1).GistID, got.GistID)
	s.Equal("hello-1", got.SlugWithCounter())
}

func (s *PostgresIntegrationSuite) TestPostStore_ListPosts_TotalPages() {
	store := NewPostStore(s.db)
	s.savePosts(95)

	for _, tc := range []struct {
		pageSize   int
		totalPages int
	}{
		{1, 95},
		{10, 10},
		{95, 1},
		{100, 1},
	} {
		page, err := store.ListPosts(s.ctx, 0, tc.pageSize)
		s.Require().NoError(err)
		s.Equal(tc.totalPages, page.TotalPages, "page size %d", tc.pageSize)
	}
}

func (s *PostgresIntegrationSuite) TestPostStore_ListPosts_Pages() {
	store := NewPostStore(s.db)
	s.savePosts(95)

	first, err := store.ListPosts(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(first.Posts, 10)
	s.Equal(testutil.NewPost(94).GistID, first.Posts[0].GistID)
	for i := 1; i < len(first.Posts); i++ {
		s.True(first.Posts[i-1].CreatedAt.After(first.Posts[i].CreatedAt))
	}

	last, err := store.ListPosts(s.ctx, 9, 10)
	s.Require().NoError(err)
	s.Len(last.Posts, 5)
	s.Equal(testutil.NewPost(0).GistID, last.Posts[4].GistID)

	beyond, err := store.ListPosts(s.ctx, 10, 10)
	s.Require().NoError(err)
	s.Empty(beyond.Posts)
	s.Equal(10, beyond.TotalPages)
}

func (s *PostgresIntegrationSuite) TestPostStore_ListPosts_Empty() {
	store := NewPostStore(s.db)

	page, err := store.ListPosts(s.ctx, 0, 10)
	s.NoError(err)
	s.Equal(0, page.TotalPages)
	s.Empty(page.Posts)
}

func (s *PostgresIntegrationSuite) TestPostStore_ListPosts_InvalidArguments() {
	store := NewPostStore(s.db)

	for _, args := range [][2]int{{0, 0}, {-1, 10}, {0, -5}, {math.MaxInt/10 + 1, 10}} {
		_, err := store.ListPosts(s.ctx, args[0], args[1])
		s.True(errors.Is(err, domain.ErrInvalidArgument), fmt.Sprint(args))
	}
}

func (s *PostgresIntegrationSuite) TestPostStore_HasPostWithContentHash() {
	store := NewPostStore(s.db)
	post := testutil.NewPost(1)
	s.Require().NoError(store.SavePost(s.ctx, &post))

	ok, err := store.HasPostWithContentHash(s.ctx, post.SlugWithCounter(), post.ContentHash)
	s.NoError(err)
	s.True(ok)

	ok, err = store.HasPostWithContentHash(s.ctx, post.SlugWithCounter(), testutil.NewPost(2).ContentHash)
	s.NoError(err)
	s.False(ok)

	ok, err = store.HasPostWithContentHash(s.ctx, "other-0", post.ContentHash)
	s.NoError(err)
	s.False(ok)
}

func (s *PostgresIntegrationSuite) TestCheckpointStore_GetUnset() {
	store := NewCheckpointStore(s.db)

	checkpoint, err := store.Get(s.ctx)
	s.NoError(err)
	s.True(checkpoint.IsZero())
}

func (s *PostgresIntegrationSuite) TestCheckpointStore_SetAndGet() {
	store := NewCheckpointStore(s.db)
	first := testutil.BaseTime
	second := first.Add(time.Hour)

	s.Require().NoError(store.Set(s.ctx, first))
	s.Require().NoError(store.Set(s.ctx, second))

	checkpoint, err := store.Get(s.ctx)
	s.NoError(err)
	s.True(second.Equal(checkpoint))

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM sync_checkpoint"))
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestTransaction_Commit() {
	tm := NewTransactionManager(s.db)
	store := NewPostStore(s.db)
	post := testutil.NewPost(1)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		return store.SavePost(ctx, &post)
	})
	s.NoError(err)

	got, err := store.GetPost(s.ctx, post.GistID)
	s.NoError(err)
	s.NotNil(got)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewPostStore(s.db)
	checkpoints := NewCheckpointStore(s.db)
	post := testutil.NewPost(1)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.SavePost(ctx, &post); err != nil {
			return err
		}
		if err := checkpoints.Set(ctx, testutil.BaseTime); err != nil {
			return err
		}
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	got, err := store.GetPost(s.ctx, post.GistID)
	s.NoError(err)
	s.Nil(got)

	checkpoint, err := checkpoints.Get(s.ctx)
	s.NoError(err)
	s.True(checkpoint.IsZero())
}

func (s *PostgresIntegrationSuite) TestTransaction_ReadOnlyRejectsWrites() {
	tm := NewTransactionManager(s.db)
	store := NewPostStore(s.db)
	post := testutil.NewPost(1)

	err := tm.WithReadOnlyTransaction(s.ctx, func(ctx context.Context) error {
		return store.SavePost(ctx, &post)
	})
	s.Error(err)
}

func (s *PostgresIntegrationSuite) TestTransaction_TryLock() {
	tm := NewTransactionManager(s.db)

	_, err := tm.TryLock(s.ctx)
	s.Error(err)

	err = tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		locked, err := tm.TryLock(ctx)
		s.Require().NoError(err)
		s.True(locked)

		return tm.WithTransaction(context.Background(), func(other context.Context) error {
			locked, err := tm.TryLock(other)
			s.Require().NoError(err)
			s.False(locked)
			return nil
		})
	})
	s.NoError(err)
}
