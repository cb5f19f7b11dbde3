// Package github reads blog gists from the GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"gistblog/internal/domain"
)

const (
	SourceID = "github"

	DefaultPageSize  = 100
	DefaultRateLimit = 20
)

// Config holds GitHub source configuration.
type Config struct {
	Username string
	Token    string
	BaseURL  string
	PageSize int
	Timeout  time.Duration
	// RateLimit is requests per minute.
	RateLimit      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// CheckpointStore persists the sync boundary between cycles.
type CheckpointStore interface {
	Get(ctx context.Context) (time.Time, error)
	Set(ctx context.Context, t time.Time) error
}

// Client lists gists updated since the stored checkpoint and fetches their raw files.
type Client struct {
	rest        *gh.Client
	httpClient  *http.Client
	limiter     *rate.Limiter
	checkpoints CheckpointStore
	username    string
	pageSize    int

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	logger *slog.Logger
}

func New(cfg Config, checkpoints CheckpointStore, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	httpClient.Timeout = cfg.Timeout

	rest := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		rest.BaseURL = u
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return &Client{
		rest:           rest,
		httpClient:     rest.Client(),
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(rateLimit)), rateLimit),
		checkpoints:    checkpoints,
		username:       cfg.Username,
		pageSize:       pageSize,
		maxAttempts:    maxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}, nil
}

// ListUpdatedGists returns every gist updated at or after the stored checkpoint,
// oldest update first. Any failed page fails the whole listing.
func (c *Client) ListUpdatedGists(ctx context.Context) ([]domain.Gist, error) {
	since, err := c.checkpoints.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	opts := &gh.GistListOptions{
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: c.pageSize},
	}

	var gists []domain.Gist
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", domain.ErrGistList, err)
		}

		page, resp, err := c.rest.Gists.List(ctx, c.username, opts)
		if err != nil {
			var rle *gh.RateLimitError
			if errors.As(err, &rle) {
				return nil, fmt.Errorf("%w: rate limited until %s: %w", domain.ErrGistList, rle.Rate.Reset.Time, err)
			}
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrGistList, opts.Page, err)
		}

		for _, g := range page {
			gists = append(gists, toDomain(g))
		}

		c.logger.Debug("fetched gist page",
			"page", opts.Page,
			"gists", len(page),
			"total", len(gists),
		)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	sort.SliceStable(gists, func(i, j int) bool {
		if gists[i].UpdatedAt.Equal(gists[j].UpdatedAt) {
			return gists[i].ID < gists[j].ID
		}
		return gists[i].UpdatedAt.Before(gists[j].UpdatedAt)
	})

	c.logger.Info("listed updated gists", "since", since, "count", len(gists))
	return gists, nil
}

// UpdateCheckpoint stores one second past the newest update in gists. The API's
// since filter has second precision and is inclusive, so the boundary gist is not
// returned again.
func (c *Client) UpdateCheckpoint(ctx context.Context, gists []domain.Gist) error {
	if len(gists) == 0 {
		return nil
	}

	latest := gists[0].UpdatedAt
	for _, g := range gists[1:] {
		if g.UpdatedAt.After(latest) {
			latest = g.UpdatedAt
		}
	}

	next := latest.Truncate(time.Second).Add(time.Second)
	if err := c.checkpoints.Set(ctx, next); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

// FetchContent downloads a raw gist file.
func (c *Client) FetchContent(ctx context.Context, rawURL string) (string, error) {
	var body string
	var err error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err = c.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if attempt == c.maxAttempts || !retryable(err) {
			break
		}

		backoff := c.backoff(attempt)
		c.logger.Warn("content fetch failed, retrying",
			"url", rawURL,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", domain.ErrContentFetch, ctx.Err())
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("%w: %s: %w", domain.ErrContentFetch, rawURL, err)
}

// fetchOnce is not rate limited: raw files are served outside the REST API quota.
func (c *Client) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.code)
}

// retryable reports whether a failed download may succeed on another attempt.
// Transport errors, 429 and 5xx are retried; other statuses are final.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return true
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := c.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if c.maxBackoff > 0 && backoff > c.maxBackoff {
		backoff = c.maxBackoff
	}
	return backoff
}

func toDomain(g *gh.Gist) domain.Gist {
	files := make(map[string]domain.GistFile, len(g.Files))
	for name, f := range g.Files {
		filename := f.GetFilename()
		if filename == "" {
			filename = string(name)
		}
		files[filename] = domain.GistFile{
			Filename: filename,
			Type:     f.GetType(),
			RawURL:   f.GetRawURL(),
		}
	}

	return domain.Gist{
		ID:          g.GetID(),
		Description: g.GetDescription(),
		Files:       files,
		CreatedAt:   g.GetCreatedAt().Time.UTC(),
		UpdatedAt:   g.GetUpdatedAt().Time.UTC(),
		OwnerID:     g.GetOwner().GetID(),
		HTMLURL:     g.GetHTMLURL(),
		Public:      g.GetPublic(),
	}
}
