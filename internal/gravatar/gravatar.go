// Package gravatar builds Gravatar avatar URLs.
package gravatar

import (
	"fmt"
	"net/url"
	"strings"

	"gistblog/internal/hash"
)

const (
	DefaultSize  = 64
	DefaultImage = "robohash"

	baseURL = "https://www.gravatar.com/avatar/"
)

// ImageURL returns the avatar URL for email. Gravatar keys avatars by the
// SHA-256 of the trimmed, lowercased address. A non-positive size uses DefaultSize
// and an empty defaultImage uses DefaultImage.
func ImageURL(email string, size int, defaultImage string) string {
	if size <= 0 {
		size = DefaultSize
	}
	if defaultImage == "" {
		defaultImage = DefaultImage
	}

	digest := hash.SHA256Hex(strings.ToLower(strings.TrimSpace(email)))

	query := url.Values{}
	query.Set("s", fmt.Sprint(size))
	query.Set("d", defaultImage)
	return baseURL + digest + "?" + query.Encode()
}
