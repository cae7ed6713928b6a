package objectstore

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeyKeepsExtension(t *testing.T) {
	cases := map[string]string{
		"clip.MP4":       ".mp4",
		" holiday.mov ":  ".mov",
		"archive.tar.gz": ".gz",
		"no-extension":   ".bin",
		"trailing.":      ".bin",
		"":               ".bin",
	}
	for name, ext := range cases {
		key := NewKey(name)
		assert.True(t, strings.HasSuffix(key, ext), "%q -> %q", name, key)
		assert.Len(t, strings.TrimSuffix(key, ext), 36, name)
	}
	assert.NotEqual(t, NewKey("a.mp4"), NewKey("a.mp4"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", Config{AccountID: "acct"}.EndpointURL())
	assert.Equal(t, "http://localhost:9000", Config{AccountID: "acct", Endpoint: "http://localhost:9000"}.EndpointURL())
}

func TestNewR2RequiresBucket(t *testing.T) {
	_, err := NewR2(Config{AccountID: "acct"})
	assert.Error(t, err)
}

func TestPresignPut(t *testing.T) {
	r2, err := NewR2(Config{AccountID: "acct", Bucket: "videos", AccessKey: "AK", SecretKey: "SK"})
	require.NoError(t, err)

	raw, err := r2.PresignPut(context.Background(), "abc.mp4", 15*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "acct.r2.cloudflarestorage.com", u.Host)
	assert.Equal(t, "/videos/abc.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-Credential"), "AK/")
}
