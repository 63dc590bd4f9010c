package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/estimabot/internal/domain"
)

type fakeRunner struct {
	spec     ContainerSpec
	exitCode int64
	stderr   []byte
	err      error
	write    string
}

func (f *fakeRunner) Run(_ context.Context, spec ContainerSpec) (int64, []byte, error) {
	f.spec = spec
	if f.write != "" {
		if err := os.WriteFile(filepath.Join(spec.HostDir, f.write), []byte("data"), 0o600); err != nil {
			return 0, nil, err
		}
	}
	return f.exitCode, f.stderr, f.err
}

func TestDockerAcquirerSuccess(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{write: "dQw4w9WgXcQ.mp4"}
	a := NewDockerAcquirer("jauderho/yt-dlp:latest", nil, runner)

	art, err := a.Acquire(context.Background(), Request{URL: testURL, Format: domain.FormatVideo, Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dQw4w9WgXcQ.mp4"), art.Path)

	assert.Equal(t, "jauderho/yt-dlp:latest", runner.spec.Image)
	assert.True(t, filepath.IsAbs(runner.spec.HostDir))
	assert.Contains(t, runner.spec.Cmd, containerMountPath+"/%(id)s.%(ext)s")
	assert.Contains(t, runner.spec.Cmd, videoSelector)
	assert.NotEmpty(t, runner.spec.User)
}

func TestDockerAcquirerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		write:    "dQw4w9WgXcQ.webm.part",
		exitCode: 1,
		stderr:   []byte("ERROR: [youtube] dQw4w9WgXcQ: Requested format is not available"),
	}
	a := NewDockerAcquirer("img", nil, runner)

	_, err := a.Acquire(context.Background(), Request{URL: testURL, Format: domain.FormatAudio, Dir: dir})
	require.ErrorIs(t, err, ErrNoStreamFound)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDockerAcquirerRunnerError(t *testing.T) {
	a := NewDockerAcquirer("img", nil, &fakeRunner{err: errors.New("daemon unreachable")})

	_, err := a.Acquire(context.Background(), Request{URL: testURL, Format: domain.FormatAudio, Dir: t.TempDir()})
	require.ErrorIs(t, err, ErrExtraction)
	var ae *AcquisitionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "docker", ae.Backend)
}
