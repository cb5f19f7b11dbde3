package gravatar

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gistblog/internal/hash"
)

func TestImageURL(t *testing.T) {
	tests := []struct {
		name         string
		size         int
		defaultImage string
		wantSize     string
		wantDefault  string
	}{
		{"defaults", 0, "", "64", "robohash"},
		{"custom size", 128, "", "128", "robohash"},
		{"custom default", 64, "identicon", "64", "identicon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := ImageURL("example@example.com", tt.size, tt.defaultImage)

			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "www.gravatar.com", u.Host)
			assert.Equal(t, "/avatar/"+hash.SHA256Hex("example@example.com"), u.Path)
			assert.Equal(t, url.Values{"s": {tt.wantSize}, "d": {tt.wantDefault}}, u.Query())
		})
	}
}

func TestImageURL_NormalizesEmail(t *testing.T) {
	assert.Equal(t,
		ImageURL("example@example.com", 64, ""),
		ImageURL("  Example@EXAMPLE.com\n", 64, ""),
	)
}
