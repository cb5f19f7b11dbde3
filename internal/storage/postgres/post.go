package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gistblog/internal/domain"
)

const uniqueViolationCode = "23505"

const postColumns = `
	gist_id, html_url, content_url, content, content_hash, title, description,
	tags, created_at, updated_at, owner_id, public, slug, slug_counter`

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

type postRow struct {
	GistID      string         `db:"gist_id"`
	HTMLURL     string         `db:"html_url"`
	ContentURL  string         `db:"content_url"`
	Content     string         `db:"content"`
	ContentHash string         `db:"content_hash"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Tags        pq.StringArray `db:"tags"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	OwnerID     int64          `db:"owner_id"`
	Public      bool           `db:"public"`
	Slug        string         `db:"slug"`
	SlugCounter int            `db:"slug_counter"`
}

func (r *postRow) toDomain() (domain.Post, error) {
	if r.GistID == "" {
		return domain.Post{}, fmt.Errorf("post row without gist_id")
	}
	if r.SlugCounter < 0 {
		return domain.Post{}, fmt.Errorf("post %s: negative slug_counter %d", r.GistID, r.SlugCounter)
	}

	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}

	return domain.Post{
		GistID:      r.GistID,
		HTMLURL:     r.HTMLURL,
		ContentURL:  r.ContentURL,
		Content:     r.Content,
		ContentHash: r.ContentHash,
		Title:       r.Title,
		Description: r.Description,
		Tags:        tags,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		OwnerID:     r.OwnerID,
		Public:      r.Public,
		Slug:        r.Slug,
		SlugCounter: r.SlugCounter,
	}, nil
}

// GetPost returns the post synced from gistID, or nil when absent.
func (s *PostStore) GetPost(ctx context.Context, gistID string) (*domain.Post, error) {
	return s.getOne(ctx, "SELECT"+postColumns+" FROM posts WHERE gist_id = $1", gistID)
}

// GetPostBySlug looks a post up by its "<slug>-<counter>" identifier, or returns nil when absent.
func (s *PostStore) GetPostBySlug(ctx context.Context, slugWithCounter string) (*domain.Post, error) {
	return s.getOne(ctx, "SELECT"+postColumns+" FROM posts WHERE slug_with_counter = $1", slugWithCounter)
}

func (s *PostStore) getOne(ctx context.Context, query string, arg string) (*domain.Post, error) {
	var row postRow
	err := GetExecutor(ctx, s.db).GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	post, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// SavePost upserts post keyed by gist id.
func (s *PostStore) SavePost(ctx context.Context, post *domain.Post) error {
	query := `
		INSERT INTO posts (` + postColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
		ON CONFLICT (gist_id) DO UPDATE SET
			html_url = EXCLUDED.html_url,
			content_url = EXCLUDED.content_url,
			content = EXCLUDED.content,
			content_hash = EXCLUDED.content_hash,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			owner_id = EXCLUDED.owner_id,
			public = EXCLUDED.public,
			slug = EXCLUDED.slug,
			slug_counter = EXCLUDED.slug_counter`

	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		post.GistID,
		post.HTMLURL,
		post.ContentURL,
		post.Content,
		post.ContentHash,
		post.Title,
		post.Description,
		pq.Array(tags),
		post.CreatedAt,
		post.UpdatedAt,
		post.OwnerID,
		post.Public,
		post.Slug,
		post.SlugCounter,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return fmt.Errorf("%w: %s-%d (gist %s): %v",
			domain.ErrUniquenessViolation, post.Slug, post.SlugCounter, post.GistID, err)
	}
	return err
}

// GetSlugCounter returns the highest slug_counter in use for slug.
func (s *PostStore) GetSlugCounter(ctx context.Context, slug string) (int, bool, error) {
	var counter sql.NullInt64
	err := GetExecutor(ctx, s.db).GetContext(ctx, &counter,
		"SELECT MAX(slug_counter) FROM posts WHERE slug = $1", slug)
	if err != nil {
		return 0, false, err
	}
	if !counter.Valid {
		return 0, false, nil
	}
	return int(counter.Int64), true, nil
}

// ListPosts returns page (zero based) of posts ordered by creation time, newest first.
func (s *PostStore) ListPosts(ctx context.Context, page, pageSize int) (*domain.PostPage, error) {
	if pageSize < 1 {
		return nil, fmt.Errorf("%w: pageSize must be at least 1", domain.ErrInvalidArgument)
	}
	if page < 0 {
		return nil, fmt.Errorf("%w: page must be at least 0", domain.ErrInvalidArgument)
	}
	if page > math.MaxInt/pageSize {
		return nil, fmt.Errorf("%w: page %d is out of range", domain.ErrInvalidArgument, page)
	}

	exec := GetExecutor(ctx, s.db)

	var count int
	if err := exec.GetContext(ctx, &count, "SELECT COUNT(*) FROM posts"); err != nil {
		return nil, err
	}

	var rows []postRow
	query := "SELECT" + postColumns + `
		FROM posts
		ORDER BY created_at DESC, gist_id
		LIMIT $1 OFFSET $2`
	if err := exec.SelectContext(ctx, &rows, query, pageSize, page*pageSize); err != nil {
		return nil, err
	}

	posts := make([]domain.Post, 0, len(rows))
	for i := range rows {
		post, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	totalPages := count / pageSize
	if count%pageSize != 0 {
		totalPages++
	}
	return &domain.PostPage{
		TotalPages: totalPages,
		Posts:      posts,
	}, nil
}

// HasPostWithContentHash reports whether the post identified by slugWithCounter currently has hash.
func (s *PostStore) HasPostWithContentHash(ctx context.Context, slugWithCounter, hash string) (bool, error) {
	var exists bool
	err := GetExecutor(ctx, s.db).GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM posts WHERE slug_with_counter = $1 AND content_hash = $2)",
		slugWithCounter, hash)
	return exists, err
}
