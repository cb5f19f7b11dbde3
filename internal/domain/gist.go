package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// MarkdownContentType is the file type GitHub reports for Markdown gist files.
const MarkdownContentType = "text/markdown"

var (
	titlePattern = regexp.MustCompile(`\[.*\]`)
	// A hashtag must start the description or follow a character that cannot be part of a word,
	// so URL fragments and "a#b" are not tags.
	tagPattern = regexp.MustCompile(`(^|[^\p{L}\p{M}\p{N}_&#/])#([\p{L}\p{M}\p{N}_]+)`)
)

type GistFile struct {
	Filename string
	Type     string
	RawURL   string
}

// Gist is a normalized, read-only mirror of a GitHub gist.
type Gist struct {
	ID          string
	Description string
	Files       map[string]GistFile
	CreatedAt   time.Time
	UpdatedAt   time.Time
	OwnerID     int64
	HTMLURL     string
	Public      bool
}

// Title returns the text inside the first bracketed span of the description.
func (g *Gist) Title() string {
	match := titlePattern.FindString(g.Description)
	if len(match) < 2 {
		return ""
	}
	return match[1 : len(match)-1]
}

// Tags returns the set of hashtags in the description without the leading '#'.
func (g *Gist) Tags() map[string]struct{} {
	tags := make(map[string]struct{})
	for _, m := range tagPattern.FindAllStringSubmatch(g.Description, -1) {
		tags[m[2]] = struct{}{}
	}
	return tags
}

// TagList returns the tags sorted, for stable storage.
func (g *Gist) TagList() []string {
	tags := g.Tags()
	list := make([]string, 0, len(tags))
	for tag := range tags {
		list = append(list, tag)
	}
	sort.Strings(list)
	return list
}

func (g *Gist) HasTag(tag string) bool {
	_, ok := g.Tags()[tag]
	return ok
}

// ProcessedDescription is the description with the title span and hashtags removed.
func (g *Gist) ProcessedDescription() string {
	description := g.Description
	if loc := titlePattern.FindStringIndex(description); loc != nil {
		description = description[:loc[0]] + " " + description[loc[1]:]
	}
	description = tagPattern.ReplaceAllString(description, "$1")
	return strings.Join(strings.Fields(description), " ")
}

// MarkdownFileURL returns the raw URL of the first Markdown file, ordered by filename.
func (g *Gist) MarkdownFileURL() (string, bool) {
	names := make([]string, 0, len(g.Files))
	for name := range g.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		file := g.Files[name]
		if file.Type == MarkdownContentType && file.RawURL != "" {
			return file.RawURL, true
		}
	}
	return "", false
}
