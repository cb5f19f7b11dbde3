package domain

import (
	"fmt"
	"time"
)

type Post struct {
	GistID      string    `json:"gistId"`
	HTMLURL     string    `json:"htmlUrl"`
	ContentURL  string    `json:"contentUrl"`
	Content     string    `json:"content"`
	ContentHash string    `json:"contentHash"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	OwnerID     int64     `json:"ownerId"`
	Public      bool      `json:"public"`
	Slug        string    `json:"slug"`
	SlugCounter int       `json:"slugCounter"`
}

// SlugWithCounter returns the external identifier used in post URLs.
func (p *Post) SlugWithCounter() string {
	return fmt.Sprintf("%s-%d", p.Slug, p.SlugCounter)
}

// PostPage is a single page of posts ordered newest first.
type PostPage struct {
	TotalPages int    `json:"totalPages"`
	Posts      []Post `json:"posts"`
}
