// Package markdown renders post bodies to HTML the way GitHub displays gists.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// Renderer converts Markdown to HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// New builds a renderer. With sanitize set, rendered HTML is filtered through a
// UGC policy; otherwise raw HTML in posts is passed through as trusted.
func New(sanitize bool) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&titleRemover{}, 100),
				util.Prioritized(&alertTransformer{}, 200),
				util.Prioritized(&dirAutoTransformer{}, 300),
			),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&headingRenderer{}, 100),
				util.Prioritized(&alertRenderer{}, 100),
			),
		),
	)

	r := &Renderer{
		md:     md,
		strict: bluemonday.StrictPolicy(),
	}
	if sanitize {
		r.policy = postPolicy()
	}
	return r
}

func postPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	p.AllowAttrs("dir").Matching(regexp.MustCompile(`^(auto|ltr|rtl)$`)).Globally()
	p.AllowElements("svg", "path")
	p.AllowAttrs("viewBox", "width", "height", "aria-hidden").OnElements("svg")
	p.AllowAttrs("d").OnElements("path")
	p.AllowAttrs("type", "checked", "disabled").OnElements("input")
	return p
}

// Render converts a Markdown document to an HTML fragment. Level one headings are
// dropped since the page renders the post title itself.
func (r *Renderer) Render(document string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(document), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	out := buf.String()
	if r.policy != nil {
		out = r.policy.Sanitize(out)
	}
	return out, nil
}

// PlainText strips all markup from an HTML fragment, collapses whitespace and
// truncates the result to at most limit runes. A non-positive limit keeps everything.
func (r *Renderer) PlainText(fragment string, limit int) string {
	text := html.UnescapeString(r.strict.Sanitize(fragment))
	text = strings.Join(strings.Fields(text), " ")

	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := strings.TrimSpace(string(runes[:limit-1]))
	return cut + "…"
}
