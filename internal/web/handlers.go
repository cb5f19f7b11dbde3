package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"gistblog/internal/domain"
	"gistblog/internal/hash"
	"gistblog/internal/ogimage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	descriptionLimit = 200
	authorAvatarSize = 64
)

type listQuery struct {
	Page     int `query:"page" validate:"min=0"`
	PageSize int `query:"page_size" validate:"min=1,max=100"`
}

func bindListQuery(c echo.Context) (listQuery, error) {
	q := listQuery{PageSize: defaultPageSize}
	if err := c.Bind(&q); err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, "page and page_size must be integers")
	}
	if err := c.Validate(&q); err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("page must be >= 0 and page_size between 1 and %d", maxPageSize))
	}
	return q, nil
}

func (s *Server) home(c echo.Context) error {
	q, err := bindListQuery(c)
	if err != nil {
		return err
	}

	result, err := s.deps.Posts.ListPosts(c.Request().Context(), q.Page, q.PageSize)
	if err != nil {
		return err
	}

	data := homePage{
		Blog: s.blog,
		OG: openGraph{
			Type:        "website",
			URL:         s.absoluteURL(c, "/"),
			Title:       s.blog.Title,
			Description: s.blog.Description,
			Image:       s.absoluteURL(c, "/og-image"),
		},
		Posts:      result.Posts,
		Page:       q.Page,
		TotalPages: result.TotalPages,
	}
	if q.Page > 0 {
		data.NewerURL = pagePath(q.Page-1, q.PageSize)
	}
	if q.Page+1 < result.TotalPages {
		data.OlderURL = pagePath(q.Page+1, q.PageSize)
	}
	return renderPage(c, s.pages.home, data)
}

func (s *Server) listPosts(c echo.Context) error {
	q, err := bindListQuery(c)
	if err != nil {
		return err
	}

	result, err := s.deps.Posts.ListPosts(c.Request().Context(), q.Page, q.PageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) postIsFresh(c echo.Context, contentHash string) (bool, error) {
	return s.deps.Posts.HasPostWithContentHash(c.Request().Context(), c.Param("slug"), contentHash)
}

func (s *Server) post(c echo.Context) error {
	slug := c.Param("slug")
	post, err := s.deps.Posts.GetPostBySlug(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %q: %w", slug, domain.ErrNotFound)
	}

	body, err := s.html.getOrCreate(slug+"@"+post.ContentHash, func() (string, error) {
		return s.deps.Markdown.Render(post.Content)
	})
	if err != nil {
		return err
	}

	description := post.Description
	if description == "" {
		description = s.deps.Markdown.PlainText(body, descriptionLimit)
	}

	setETag(c, post.ContentHash)
	return renderPage(c, s.pages.post, postPage{
		Blog: s.blog,
		OG: openGraph{
			Type:        "article",
			URL:         s.absoluteURL(c, postPath(post)),
			Title:       post.Title,
			Description: description,
			Image:       s.absoluteURL(c, "/og-image/"+slug),
		},
		Post:      post,
		Body:      trustedHTML(body),
		AvatarURL: s.avatarURL(authorAvatarSize),
	})
}

func (s *Server) blogCard(c echo.Context) error {
	return s.serveCard(c, "blog", ogimage.Card{
		Title:       s.blog.Title,
		Description: s.blog.Description,
		Name:        s.blog.AuthorName,
	})
}

func (s *Server) postCard(c echo.Context) error {
	slug := c.Param("slug")
	post, err := s.deps.Posts.GetPostBySlug(c.Request().Context(), slug)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %q: %w", slug, domain.ErrNotFound)
	}

	return s.serveCard(c, slug, ogimage.Card{
		Title:       post.Title,
		Description: post.Description,
		Name:        s.blog.AuthorName,
	})
}

// serveCard renders card as PNG. The ETag covers the card text, so a changed
// post body alone does not invalidate the image.
func (s *Server) serveCard(c echo.Context, name string, card ogimage.Card) error {
	tag := hash.SHA256Hex(strings.Join([]string{card.Title, card.Description, card.Name}, "\x00"))

	if candidate, ok := parseIfNoneMatch(c.Request().Header.Get("If-None-Match")); ok && candidate == tag {
		setETag(c, tag)
		return c.NoContent(http.StatusNotModified)
	}

	card.Avatar = s.avatarImage(c.Request().Context())
	key := name + "@" + tag
	if card.Avatar != nil {
		key += "@avatar"
	}

	png, err := s.cards.getOrCreate(key, func() ([]byte, error) {
		return s.deps.Cards.Render(card)
	})
	if err != nil {
		return err
	}

	setETag(c, tag)
	return c.Blob(http.StatusOK, "image/png", png)
}

func (s *Server) absoluteURL(c echo.Context, path string) string {
	base := strings.TrimRight(s.blog.URL, "/")
	if base == "" {
		base = c.Scheme() + "://" + c.Request().Host
	}
	return base + path
}
