package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/ashureev/estimabot/internal/domain"
)

// LibraryAcquirer downloads streams in-process with the youtube library.
type LibraryAcquirer struct {
	client youtube.Client
}

// NewLibraryAcquirer creates the in-process backend. A nil proxy falls back
// to the proxy environment variables.
func NewLibraryAcquirer(proxy *url.URL) *LibraryAcquirer {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	transport.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	return &LibraryAcquirer{
		client: youtube.Client{HTTPClient: &http.Client{Transport: transport}},
	}
}

// Name implements Acquirer.
func (a *LibraryAcquirer) Name() string { return "library" }

// Acquire implements Acquirer.
func (a *LibraryAcquirer) Acquire(ctx context.Context, req Request) (*Artifact, error) {
	video, err := a.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return nil, acquisitionError(a.Name(), classifyLibrary(ctx, err), err)
	}

	format, ok := pickFormat(video.Formats, req.Format)
	if !ok {
		return nil, acquisitionError(a.Name(), ErrNoStreamFound, fmt.Errorf("%d formats, none usable for %s", len(video.Formats), req.Format))
	}

	stream, _, err := a.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, acquisitionError(a.Name(), classifyLibrary(ctx, err), err)
	}
	defer stream.Close()

	path := filepath.Join(req.Dir, safeID(video.ID)+extensionFor(format.MimeType))
	size, err := writeFile(path, stream)
	if err != nil {
		_ = os.Remove(path)
		return nil, acquisitionError(a.Name(), classifyLibrary(ctx, err), err)
	}

	art := &Artifact{
		Path:     path,
		Size:     size,
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
	}
	if req.Format == domain.FormatVideo {
		art.Width = format.Width
		art.Height = format.Height
	}
	return art, nil
}

// pickFormat chooses the best audio-only stream by bitrate, or the tallest
// progressive mp4 stream that carries audio.
func pickFormat(formats youtube.FormatList, want domain.Format) (*youtube.Format, bool) {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		switch want {
		case domain.FormatAudio:
			if !strings.HasPrefix(f.MimeType, "audio/") {
				continue
			}
			if best == nil || f.Bitrate > best.Bitrate {
				best = f
			}
		case domain.FormatVideo:
			if !strings.HasPrefix(f.MimeType, "video/mp4") || f.AudioChannels == 0 {
				continue
			}
			if best == nil || f.Height > best.Height || (f.Height == best.Height && f.Bitrate > best.Bitrate) {
				best = f
			}
		}
	}
	return best, best != nil
}

func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/mp4":
		return ".m4a"
	case "audio/webm", "video/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func safeID(id string) string {
	if s := unsafeID.ReplaceAllString(id, ""); s != "" {
		return s
	}
	return "media"
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

func classifyLibrary(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "403"), strings.Contains(s, "429"),
		strings.Contains(s, "login required"), strings.Contains(s, "private"),
		strings.Contains(s, "sign in"):
		return ErrSiteBlocked
	case strings.Contains(s, "no format"), strings.Contains(s, "no stream"):
		return ErrNoStreamFound
	default:
		return ErrExtraction
	}
}
