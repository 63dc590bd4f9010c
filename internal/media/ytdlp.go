package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/estimabot/internal/domain"
)

const (
	audioSelector = "bestaudio[ext=m4a]/bestaudio"
	videoSelector = "best[ext=mp4][vcodec!=none][acodec!=none]/best"

	infoSuffix = ".info.json"
)

// ytdlpArgs builds the yt-dlp command line writing into outDir.
func ytdlpArgs(rawURL string, format domain.Format, outDir string, proxy *url.URL) []string {
	selector := videoSelector
	if format == domain.FormatAudio {
		selector = audioSelector
	}
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-part",
		"--no-mtime",
		"--write-info-json",
		"--format", selector,
		"--output", filepath.ToSlash(filepath.Join(outDir, "%(id)s.%(ext)s")),
	}
	if proxy != nil {
		args = append(args, "--proxy", proxy.String())
	}
	return append(args, "--", rawURL)
}

// classifyYtdlp maps a failed run to a failure kind using its stderr.
func classifyYtdlp(ctx context.Context, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	s := strings.ToLower(stderr)
	switch {
	case strings.Contains(s, "requested format is not available"),
		strings.Contains(s, "no video formats found"):
		return ErrNoStreamFound
	case strings.Contains(s, "http error 403"),
		strings.Contains(s, "http error 429"),
		strings.Contains(s, "sign in to confirm"),
		strings.Contains(s, "video unavailable"),
		strings.Contains(s, "private video"):
		return ErrSiteBlocked
	case strings.Contains(s, "timed out"):
		return ErrTimeout
	default:
		return ErrExtraction
	}
}

// ytdlpInfo is the subset of the info JSON we attach to uploads.
type ytdlpInfo struct {
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// collectOutput finds the downloaded file in dir and fills in metadata from
// the info JSON when present.
func collectOutput(dir string) (*Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var art *Artifact
	var infoPath string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, infoSuffix):
			infoPath = filepath.Join(dir, name)
			continue
		case strings.HasSuffix(name, ".part"), strings.HasSuffix(name, ".ytdl"):
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if art == nil || fi.Size() > art.Size {
			art = &Artifact{Path: filepath.Join(dir, name), Size: fi.Size()}
		}
	}
	if art == nil {
		return nil, ErrEmptyArtifact
	}

	if infoPath != "" {
		if err := readInfo(infoPath, art); err != nil {
			slog.Debug("Ignoring unreadable info json", "path", infoPath, "error", err)
		}
	}
	return art, nil
}

func readInfo(path string, art *Artifact) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return err
	}
	art.Title = info.Title
	art.Author = info.Uploader
	if art.Author == "" {
		art.Author = info.Channel
	}
	art.Duration = time.Duration(info.Duration * float64(time.Second))
	art.Width = info.Width
	art.Height = info.Height
	return nil
}

// CommandRunner runs a program and returns its stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second
	err := cmd.Run()
	return stderr.Bytes(), err
}

// YtdlpAcquirer runs a local yt-dlp binary.
type YtdlpAcquirer struct {
	path  string
	proxy *url.URL
	run   CommandRunner
}

// NewYtdlpAcquirer creates a backend for the yt-dlp binary at path.
func NewYtdlpAcquirer(path string, proxy *url.URL) *YtdlpAcquirer {
	return &YtdlpAcquirer{path: path, proxy: proxy, run: execRunner}
}

// Name implements Acquirer.
func (a *YtdlpAcquirer) Name() string { return "ytdlp" }

// Acquire implements Acquirer.
func (a *YtdlpAcquirer) Acquire(ctx context.Context, req Request) (*Artifact, error) {
	stderr, err := a.run(ctx, a.path, ytdlpArgs(req.URL, req.Format, req.Dir, a.proxy)...)
	if err != nil {
		cleanDir(req.Dir)
		return nil, acquisitionError(a.Name(), classifyYtdlp(ctx, string(stderr)), fmt.Errorf("%w: %s", err, lastLine(stderr)))
	}

	art, err := collectOutput(req.Dir)
	if err != nil {
		cleanDir(req.Dir)
		return nil, err
	}
	return art, nil
}

// cleanDir empties dir without removing it.
func cleanDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("Failed to remove partial download", "path", e.Name(), "error", err)
		}
	}
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
