// Package web serves the blog front-end, the JSON post API and Open Graph cards.
package web

import (
	"context"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"gistblog/internal/config"
	"gistblog/internal/domain"
	"gistblog/internal/gravatar"
	"gistblog/internal/ogimage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// PostReader is the read side of the post store. Implementations pick up the
// request transaction from the context.
type PostReader interface {
	GetPostBySlug(ctx context.Context, slugWithCounter string) (*domain.Post, error)
	ListPosts(ctx context.Context, page, pageSize int) (*domain.PostPage, error)
	HasPostWithContentHash(ctx context.Context, slugWithCounter, contentHash string) (bool, error)
}

// TxBeginner opens a transaction and returns a context carrying it.
type TxBeginner interface {
	Begin(ctx context.Context, readOnly bool) (context.Context, driver.Tx, error)
}

type MarkdownRenderer interface {
	Render(document string) (string, error)
	PlainText(fragment string, limit int) string
}

type CardRenderer interface {
	Render(card ogimage.Card) ([]byte, error)
}

// AvatarLoader fetches the author avatar drawn on preview cards.
type AvatarLoader func(ctx context.Context) (image.Image, error)

type Deps struct {
	Posts    PostReader
	Tx       TxBeginner
	Markdown MarkdownRenderer
	Cards    CardRenderer
	// Avatar is optional; cards are drawn without one when it is nil or fails.
	Avatar AvatarLoader
	// Health is optional and backs /healthz.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	blog   config.BlogConfig
	deps   Deps
	logger *slog.Logger
	pages  *pages

	html     *lruCache[string]
	cards    *lruCache[[]byte]
	avatarSF singleflight.Group
	avatar   image.Image
}

func New(cfg config.ServerConfig, blog config.BlogConfig, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	tmpl, err := parsePages(templateFS)
	if err != nil {
		return nil, err
	}
	htmlCache, err := newLRUCache[string]("post_html", cfg.RenderCacheSize)
	if err != nil {
		return nil, err
	}
	cardCache, err := newLRUCache[[]byte]("og_image", cfg.RenderCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:   echo.New(),
		cfg:    cfg,
		blog:   blog,
		deps:   deps,
		logger: deps.Logger,
		pages:  tmpl,
		html:   htmlCache,
		cards:  cardCache,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = &requestValidator{validator: validator.New()}
	s.echo.HTTPErrorHandler = s.handleError
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	e := s.echo

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.logger))
	e.Use(recordMetrics())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	tx := transactional(s.deps.Tx, s.logger)
	cache := cacheControl(s.cfg.CacheMaxAge)

	e.GET("/", s.home, tx, cache)
	e.GET("/api/posts", s.listPosts, tx, cache)
	e.GET("/posts/:slug", s.post, tx, cache, etag(s.postIsFresh))
	e.GET("/og-image", s.blogCard, cache)
	e.GET("/og-image/:slug", s.postCard, tx, cache)

	e.StaticFS("/static", echo.MustSubFS(staticFS, "static"))
	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// ServeHTTP lets the server be mounted or driven directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves on the configured address until ctx is cancelled and then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.cfg.Addr)
		if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) healthz(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
	case errors.Is(err, domain.ErrInvalidArgument):
		he = echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		he = echo.NewHTTPError(http.StatusNotFound, "Not Found")
	default:
		s.logger.Error("request failed", "path", c.Path(), "error", err)
		he = echo.NewHTTPError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}

	msg := fmt.Sprint(he.Message)
	var respErr error
	switch {
	case c.Request().Method == http.MethodHead:
		respErr = c.NoContent(he.Code)
	case c.Path() == "/api/posts" || he.Code == http.StatusBadRequest:
		respErr = c.JSON(he.Code, map[string]string{"error": msg})
	default:
		respErr = c.String(he.Code, msg)
	}
	if respErr != nil {
		s.logger.Error("write error response", "error", respErr)
	}
}

// avatarImage loads the author avatar once. Failures are logged and retried on
// a later request.
func (s *Server) avatarImage(ctx context.Context) image.Image {
	if s.deps.Avatar == nil {
		return nil
	}
	v, _, _ := s.avatarSF.Do("avatar", func() (any, error) {
		if s.avatar != nil {
			return s.avatar, nil
		}
		img, err := s.deps.Avatar(ctx)
		if err != nil {
			s.logger.Warn("load avatar", "error", err)
			return nil, err
		}
		s.avatar = img
		return img, nil
	})
	img, _ := v.(image.Image)
	return img
}

func (s *Server) avatarURL(size int) string {
	if s.blog.AuthorEmail == "" {
		return ""
	}
	return gravatar.ImageURL(s.blog.AuthorEmail, size, s.blog.DefaultAvatar)
}

// NewAvatarLoader fetches the author's Gravatar for preview cards.
func NewAvatarLoader(blog config.BlogConfig, client *http.Client) AvatarLoader {
	if blog.AuthorEmail == "" {
		return nil
	}
	url := gravatar.ImageURL(blog.AuthorEmail, ogimage.AvatarSize, blog.DefaultAvatar)
	return func(ctx context.Context) (image.Image, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return ogimage.FetchAvatar(ctx, client, url)
	}
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validator.Struct(i)
}
