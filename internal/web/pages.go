package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"gistblog/internal/config"
	"gistblog/internal/domain"
)

type pages struct {
	home *template.Template
	post *template.Template
}

var templateFuncs = template.FuncMap{
	"postURL": func(p domain.Post) string { return postPath(&p) },
	"formatDate": func(t time.Time) string {
		return t.UTC().Format("January 2, 2006")
	},
	"isoDate": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	"add": func(a, b int) int { return a + b },
}

func parsePages(fsys fs.FS) (*pages, error) {
	parse := func(name string) (*template.Template, error) {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		return t, nil
	}

	home, err := parse("home.html")
	if err != nil {
		return nil, err
	}
	post, err := parse("post.html")
	if err != nil {
		return nil, err
	}
	return &pages{home: home, post: post}, nil
}

func renderPage(c echo.Context, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

type openGraph struct {
	Type        string
	URL         string
	Title       string
	Description string
	Image       string
}

type homePage struct {
	Blog       config.BlogConfig
	OG         openGraph
	Posts      []domain.Post
	Page       int
	TotalPages int
	NewerURL   string
	OlderURL   string
}

type postPage struct {
	Blog      config.BlogConfig
	OG        openGraph
	Post      *domain.Post
	Body      template.HTML
	AvatarURL string
}

func postPath(p *domain.Post) string {
	return "/posts/" + url.PathEscape(p.SlugWithCounter())
}

// pagePath links to a home page. The page size is only carried when it differs
// from the default.
func pagePath(page, pageSize int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize != defaultPageSize {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

// trustedHTML marks rendered post HTML as safe. Posts come from the blog owner's
// own gists and are optionally sanitised at render time.
func trustedHTML(s string) template.HTML {
	return template.HTML(s)
}
