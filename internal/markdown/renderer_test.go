package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, r *Renderer, doc string) string {
	t.Helper()
	out, err := r.Render(doc)
	require.NoError(t, err)
	return out
}

func TestRender(t *testing.T) {
	r := New(false)

	tests := []struct {
		name     string
		markdown string
		contains []string
		excludes []string
	}{
		{
			name:     "basic paragraph",
			markdown: "# Title\n\nHello, World!",
			contains: []string{"Hello, World!"},
			excludes: []string{"<h1"},
		},
		{
			name:     "raw html",
			markdown: `<span class="test">Test</span>`,
			contains: []string{`<span class="test">Test</span>`},
		},
		{
			name:     "task list",
			markdown: "- [x] Task 1\n- [ ] Task 2",
			contains: []string{`type="checkbox"`, `checked=""`},
		},
		{
			name:     "alert",
			markdown: "> [!WARNING]\n> Warning!",
			contains: []string{"markdown-alert markdown-alert-warning", "octicon octicon-alert mr-2", "Warning!</p>"},
			excludes: []string{"<blockquote", "[!WARNING]"},
		},
		{
			name:     "lowercase alert marker",
			markdown: "> [!tip]\n> Try this",
			contains: []string{"markdown-alert-tip", ">Tip</p>"},
		},
		{
			name:     "plain blockquote",
			markdown: "> just a quote",
			contains: []string{"<blockquote", "just a quote"},
			excludes: []string{"markdown-alert"},
		},
		{
			name:     "marker followed by text on the same line",
			markdown: "> [!NOTE] inline",
			contains: []string{"<blockquote"},
			excludes: []string{"markdown-alert"},
		},
		{
			name:     "code block language class",
			markdown: "```ts\nconst foo = 'bar';\n```",
			contains: []string{`class="language-ts"`},
		},
		{
			name:     "heading wrapped in anchor link",
			markdown: "## Some heading",
			contains: []string{`id="some-heading"`, `<a class="autolink-heading" href="#some-heading">Some heading</a></h2>`},
		},
		{
			name:     "dir auto",
			markdown: "Hello",
			contains: []string{`<p dir="auto">Hello</p>`},
		},
		{
			name:     "table",
			markdown: "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table", "<td>1</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := render(t, r, tt.markdown)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestRender_OnlyTitle(t *testing.T) {
	assert.Equal(t, "", render(t, New(false), "# Title"))
}

func TestRender_RemovesEveryLevelOneHeading(t *testing.T) {
	out := render(t, New(false), "# One\n\ntext\n\n# Two\n\n### Three")
	assert.NotContains(t, out, "One")
	assert.NotContains(t, out, "Two")
	assert.Contains(t, out, "Three")
}

func TestRender_Sanitized(t *testing.T) {
	r := New(true)

	out := render(t, r, "Hello <script>alert(1)</script>\n\n> [!NOTE]\n> Careful\n\n## Anchor")
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "markdown-alert-note")
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, `href="#anchor"`)
	assert.Contains(t, out, `dir="auto"`)
}

func TestPlainText(t *testing.T) {
	r := New(false)

	assert.Equal(t, "Hello world & friends", r.PlainText("<p>Hello <b>world</b></p>\n<p>&amp; friends</p>", 0))

	long := strings.Repeat("word ", 50)
	out := r.PlainText("<p>"+long+"</p>", 20)
	assert.LessOrEqual(t, len([]rune(out)), 20)
	assert.True(t, strings.HasSuffix(out, "…"))

	assert.Equal(t, "short", r.PlainText("short", 20))
}
