package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gistblog/internal/testutil"
)

func TestNewPostMessage(t *testing.T) {
	post := testutil.NewPost(3)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	created := NewPostMessage(&post, true, now)
	assert.Equal(t, ActionCreate, created.Action)
	assert.Equal(t, time.UTC, created.Timestamp.Location())
	assert.True(t, now.Equal(created.Timestamp))

	updated := NewPostMessage(&post, false, now)
	assert.Equal(t, ActionUpdate, updated.Action)
}

func TestPostMessage_JSON(t *testing.T) {
	post := testutil.NewPost(3)
	body, err := json.Marshal(NewPostMessage(&post, true, testutil.BaseTime))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "create", decoded["action"])
	assert.Equal(t, "2024-03-01T12:00:00Z", decoded["timestamp"])

	postJSON, ok := decoded["post"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, post.GistID, postJSON["gistId"])
	assert.Equal(t, post.Slug, postJSON["slug"])
	assert.Equal(t, post.ContentHash, postJSON["contentHash"])
}
