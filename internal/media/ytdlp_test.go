package media

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/estimabot/internal/domain"
)

func TestYtdlpArgs(t *testing.T) {
	proxy, err := url.Parse("socks5://user:pw@proxy:1080")
	require.NoError(t, err)

	args := ytdlpArgs(testURL, domain.FormatAudio, "/downloads", proxy)
	assert.Contains(t, args, audioSelector)
	assert.Contains(t, args, "/downloads/%(id)s.%(ext)s")
	assert.Contains(t, args, "--write-info-json")
	assert.Contains(t, args, "socks5://user:pw@proxy:1080")
	assert.Equal(t, testURL, args[len(args)-1])
	assert.Equal(t, "--", args[len(args)-2])

	args = ytdlpArgs(testURL, domain.FormatVideo, "/d", nil)
	assert.Contains(t, args, videoSelector)
	assert.NotContains(t, args, "--proxy")
}

func TestClassifyYtdlp(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		stderr string
		want   error
	}{
		{"ERROR: [youtube] x: Requested format is not available", ErrNoStreamFound},
		{"ERROR: unable to download video data: HTTP Error 403: Forbidden", ErrSiteBlocked},
		{"ERROR: [youtube] x: Sign in to confirm you're not a bot", ErrSiteBlocked},
		{"ERROR: HTTP Error 429: Too Many Requests", ErrSiteBlocked},
		{"ERROR: Read timed out.", ErrTimeout},
		{"ERROR: something odd", ErrExtraction},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, classifyYtdlp(ctx, tt.stderr), tt.want, tt.stderr)
	}

	expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	assert.ErrorIs(t, classifyYtdlp(expired, ""), ErrTimeout)
}

func TestCollectOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.mp4"), []byte("video-bytes"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.info.json"),
		[]byte(`{"title":"Clip","uploader":"","channel":"Chan","duration":12.5,"width":640,"height":360}`), 0o600))

	art, err := collectOutput(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.mp4"), art.Path)
	assert.Equal(t, int64(len("video-bytes")), art.Size)
	assert.Equal(t, "Clip", art.Title)
	assert.Equal(t, "Chan", art.Author)
	assert.Equal(t, 12500*time.Millisecond, art.Duration)
	assert.Equal(t, 640, art.Width)
	assert.Equal(t, 360, art.Height)
}

func TestCollectOutputWithoutMediaFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.info.json"), []byte(`{}`), 0o600))

	_, err := collectOutput(dir)
	assert.ErrorIs(t, err, ErrEmptyArtifact)
}

func TestYtdlpAcquirer(t *testing.T) {
	dir := t.TempDir()
	var gotName string
	a := NewYtdlpAcquirer("/usr/local/bin/yt-dlp", nil)
	a.run = func(_ context.Context, name string, _ ...string) ([]byte, error) {
		gotName = name
		return nil, os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.m4a"), []byte("audio"), 0o600)
	}

	art, err := a.Acquire(context.Background(), Request{URL: testURL, Format: domain.FormatAudio, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/yt-dlp", gotName)
	assert.Equal(t, filepath.Join(dir, "dQw4w9WgXcQ.m4a"), art.Path)
}

func TestYtdlpAcquirerFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	a := NewYtdlpAcquirer("yt-dlp", nil)
	a.run = func(context.Context, string, ...string) ([]byte, error) {
		_ = os.WriteFile(filepath.Join(dir, "dQw4w9WgXcQ.mp4.part"), []byte("partial"), 0o600)
		return []byte("WARNING: x\nERROR: HTTP Error 403: Forbidden\n"), errors.New("exit status 1")
	}

	_, err := a.Acquire(context.Background(), Request{URL: testURL, Format: domain.FormatVideo, Dir: dir})
	require.ErrorIs(t, err, ErrSiteBlocked)
	assert.Contains(t, err.Error(), "HTTP Error 403")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
