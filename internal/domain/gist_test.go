package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagSet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

func TestGist_TitleAndTags(t *testing.T) {
	tests := []struct {
		name        string
		description string
		title       string
		tags        map[string]struct{}
	}{
		{name: "empty description", description: "", title: "", tags: tagSet()},
		{name: "title only", description: "[title]", title: "title", tags: tagSet()},
		{name: "tags only", description: "#tag1 #tag2", title: "", tags: tagSet("tag1", "tag2")},
		{name: "title and tags", description: "some text [title] more text #tag1 #tag2", title: "title", tags: tagSet("tag1", "tag2")},
		{name: "duplicate tags", description: "[t] #blog #blog", title: "t", tags: tagSet("blog")},
		{name: "tags are case sensitive", description: "#Blog #blog", title: "", tags: tagSet("Blog", "blog")},
		{name: "url fragment is not a tag", description: "see https://example.com/#anchor and a#b", title: "", tags: tagSet()},
		{name: "unicode tag", description: "[Über] #göteborg", title: "Über", tags: tagSet("göteborg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Gist{Description: tt.description}
			assert.Equal(t, tt.title, g.Title())
			assert.Equal(t, tt.tags, g.Tags())
		})
	}
}

func TestGist_ProcessedDescription(t *testing.T) {
	tests := []struct {
		description string
		expected    string
	}{
		{"[Title] Some description #tag1 #tag2", "Some description"},
		{"Intro [Title]   more   text #blog", "Intro more text"},
		{"#blog", ""},
		{"", ""},
	}

	for _, tt := range tests {
		g := Gist{Description: tt.description}
		assert.Equal(t, tt.expected, g.ProcessedDescription(), tt.description)
	}
}

func TestGist_HasTagAndTagList(t *testing.T) {
	g := Gist{Description: "[title] #some #blog"}

	assert.True(t, g.HasTag("blog"))
	assert.False(t, g.HasTag("Blog"))
	assert.Equal(t, []string{"blog", "some"}, g.TagList())
}

func TestGist_MarkdownFileURL(t *testing.T) {
	t.Run("no files", func(t *testing.T) {
		g := Gist{}
		_, ok := g.MarkdownFileURL()
		assert.False(t, ok)
	})

	t.Run("non markdown file", func(t *testing.T) {
		g := Gist{Files: map[string]GistFile{
			"file.md": {Filename: "file.md", Type: "not-markdown", RawURL: "https://example.com/raw/file.md"},
		}}
		_, ok := g.MarkdownFileURL()
		assert.False(t, ok)
	})

	t.Run("markdown without raw url", func(t *testing.T) {
		g := Gist{Files: map[string]GistFile{
			"file.md": {Filename: "file.md", Type: MarkdownContentType},
		}}
		_, ok := g.MarkdownFileURL()
		assert.False(t, ok)
	})

	t.Run("first markdown file by name", func(t *testing.T) {
		g := Gist{Files: map[string]GistFile{
			"b.md":    {Filename: "b.md", Type: MarkdownContentType, RawURL: "https://example.com/b"},
			"a.md":    {Filename: "a.md", Type: MarkdownContentType, RawURL: "https://example.com/a"},
			"0.go":    {Filename: "0.go", Type: "text/x-go", RawURL: "https://example.com/0"},
			"aa.json": {Filename: "aa.json", Type: "application/json", RawURL: "https://example.com/aa"},
		}}
		url, ok := g.MarkdownFileURL()
		assert.True(t, ok)
		assert.Equal(t, "https://example.com/a", url)
	})
}

func TestPost_SlugWithCounter(t *testing.T) {
	p := Post{Slug: "new-post", SlugCounter: 1}
	assert.Equal(t, "new-post-1", p.SlugWithCounter())
}
