package media

import (
	"context"
	"errors"
	"testing"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"

	"github.com/ashureev/estimabot/internal/domain"
)

func TestPickFormat(t *testing.T) {
	formats := youtube.FormatList{
		{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, Bitrate: 500000, AudioChannels: 2},
		{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Height: 720, Bitrate: 1500000, AudioChannels: 2},
		{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080, Bitrate: 4000000},
		{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
		{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000, AudioChannels: 2},
	}

	audio, ok := pickFormat(formats, domain.FormatAudio)
	assert.True(t, ok)
	assert.Equal(t, 251, audio.ItagNo)

	video, ok := pickFormat(formats, domain.FormatVideo)
	assert.True(t, ok)
	assert.Equal(t, 22, video.ItagNo, "video-only streams are skipped")

	_, ok = pickFormat(formats[2:3], domain.FormatVideo)
	assert.False(t, ok)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".m4a", extensionFor(`audio/mp4; codecs="mp4a.40.2"`))
	assert.Equal(t, ".webm", extensionFor(`audio/webm; codecs="opus"`))
	assert.Equal(t, ".mp4", extensionFor(`video/mp4`))
	assert.Equal(t, ".bin", extensionFor(""))
}

func TestSafeID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", safeID("dQw4w9WgXcQ"))
	assert.Equal(t, "etcpasswd", safeID("../etc/passwd"))
	assert.Equal(t, "media", safeID("///"))
}

func TestClassifyLibrary(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, classifyLibrary(ctx, errors.New("unexpected status code: 403")), ErrSiteBlocked)
	assert.ErrorIs(t, classifyLibrary(ctx, errors.New("login required to confirm your age")), ErrSiteBlocked)
	assert.ErrorIs(t, classifyLibrary(ctx, context.DeadlineExceeded), ErrTimeout)
	assert.ErrorIs(t, classifyLibrary(ctx, errors.New("cipher not found")), ErrExtraction)
}
