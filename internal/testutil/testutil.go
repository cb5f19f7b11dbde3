// Package testutil holds fixtures shared by unit and integration tests.
package testutil

import (
	"fmt"
	"time"

	"gistblog/internal/domain"
	"gistblog/internal/hash"
)

// BaseTime is a fixed, microsecond aligned instant so values survive a Postgres round trip.
var BaseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewPost builds a valid post whose fields derive from n. Post n is created n minutes after BaseTime.
func NewPost(n int) domain.Post {
	content := fmt.Sprintf("# Post %d\n\nBody of post %d.\n", n, n)
	created := BaseTime.Add(time.Duration(n) * time.Minute)
	id := fmt.Sprintf("gist%04d", n)

	return domain.Post{
		GistID:      id,
		HTMLURL:     "https://gist.github.com/" + id,
		ContentURL:  "https://gist.githubusercontent.com/raw/" + id + "/post.md",
		Content:     content,
		ContentHash: hash.SHA256Hex(content),
		Title:       fmt.Sprintf("Post %d", n),
		Description: fmt.Sprintf("Description %d", n),
		Tags:        []string{"blog"},
		CreatedAt:   created,
		UpdatedAt:   created.Add(time.Hour),
		OwnerID:     42,
		Public:      true,
		Slug:        fmt.Sprintf("post-%d", n),
		SlugCounter: 0,
	}
}

// NewGist builds a gist tagged #blog with a single Markdown file.
func NewGist(id, title string, updated time.Time) domain.Gist {
	return domain.Gist{
		ID:          id,
		Description: "[" + title + "] about things #blog",
		Files: map[string]domain.GistFile{
			"post.md": {
				Filename: "post.md",
				Type:     domain.MarkdownContentType,
				RawURL:   "https://gist.githubusercontent.com/raw/" + id + "/post.md",
			},
		},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		OwnerID:   42,
		HTMLURL:   "https://gist.github.com/" + id,
		Public:    true,
	}
}
