package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
)

const (
	containerMountPath = "/downloads"
	removeTimeout      = 30 * time.Second

	// Resource limits.
	memoryLimitBytes = 512 * 1024 * 1024 // 512MB
	cpuQuota         = 100000            // 1 CPU
	pidsLimit        = 256
)

// ContainerSpec is one throw-away container run.
type ContainerSpec struct {
	Image   string
	Cmd     []string
	HostDir string
	User    string
}

// ContainerRunner runs a container to completion and returns its exit code
// and stderr.
type ContainerRunner interface {
	Run(ctx context.Context, spec ContainerSpec) (exitCode int64, stderr []byte, err error)
}

// DockerAcquirer runs yt-dlp inside a container, bind-mounting the request
// directory.
type DockerAcquirer struct {
	image  string
	proxy  *url.URL
	runner ContainerRunner
}

// NewDockerAcquirer creates a backend running image through runner.
func NewDockerAcquirer(image string, proxy *url.URL, runner ContainerRunner) *DockerAcquirer {
	return &DockerAcquirer{image: image, proxy: proxy, runner: runner}
}

// Name implements Acquirer.
func (a *DockerAcquirer) Name() string { return "docker" }

// Acquire implements Acquirer.
func (a *DockerAcquirer) Acquire(ctx context.Context, req Request) (*Artifact, error) {
	hostDir, err := filepath.Abs(req.Dir)
	if err != nil {
		return nil, acquisitionError(a.Name(), ErrExtraction, err)
	}

	exitCode, stderr, err := a.runner.Run(ctx, ContainerSpec{
		Image:   a.image,
		Cmd:     ytdlpArgs(req.URL, req.Format, containerMountPath, a.proxy),
		HostDir: hostDir,
		User:    fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	})
	if err != nil {
		cleanDir(req.Dir)
		kind := ErrExtraction
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = ErrTimeout
		}
		return nil, acquisitionError(a.Name(), kind, err)
	}
	if exitCode != 0 {
		cleanDir(req.Dir)
		return nil, acquisitionError(a.Name(), classifyYtdlp(ctx, string(stderr)),
			fmt.Errorf("exit code %d: %s", exitCode, lastLine(stderr)))
	}

	art, err := collectOutput(req.Dir)
	if err != nil {
		cleanDir(req.Dir)
		return nil, err
	}
	return art, nil
}

// DockerRunner implements ContainerRunner with the Docker Engine API.
type DockerRunner struct {
	cli *client.Client
}

// NewDockerRunner connects to the Docker daemon configured in the environment.
func NewDockerRunner() (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker client initialized", "host", cli.DaemonHost())
	return &DockerRunner{cli: cli}, nil
}

// Close releases the client.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}

// Run implements ContainerRunner.
func (r *DockerRunner) Run(ctx context.Context, spec ContainerSpec) (int64, []byte, error) {
	name := "estimabot-ytdlp-" + uuid.NewString()[:8]

	config := &container.Config{
		Image:      spec.Image,
		Cmd:        spec.Cmd,
		User:       spec.User,
		WorkingDir: containerMountPath,
		Labels:     map[string]string{"app": "estimabot"},
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: spec.HostDir,
			Target: containerMountPath,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if errdefs.IsNotFound(err) {
		if pullErr := r.pull(ctx, spec.Image); pullErr != nil {
			return 0, nil, pullErr
		}
		resp, err = r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("create container: %w", err)
	}
	defer r.remove(ctx, resp.ID)

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return 0, nil, fmt.Errorf("start container %s: %w", resp.ID, err)
	}

	waitCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case res := <-waitCh:
		exitCode = res.StatusCode
		if res.Error != nil {
			slog.Debug("Container wait reported error", "container_id", resp.ID, "error", res.Error.Message)
		}
	case err := <-errCh:
		return 0, nil, fmt.Errorf("wait container %s: %w", resp.ID, err)
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}

	stderr, err := r.stderr(ctx, resp.ID)
	if err != nil {
		slog.Warn("Failed to read container logs", "container_id", resp.ID, "error", err)
	}
	return exitCode, stderr, nil
}

func (r *DockerRunner) pull(ctx context.Context, ref string) error {
	slog.Info("Pulling image", "image", ref)
	rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

func (r *DockerRunner) stderr(ctx context.Context, containerID string) ([]byte, error) {
	rc, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStderr: true})
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(io.Discard, &stderr, rc); err != nil {
		return stderr.Bytes(), err
	}
	return stderr.Bytes(), nil
}

// remove force-removes the container even when ctx is already done.
func (r *DockerRunner) remove(ctx context.Context, containerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()

	err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	switch {
	case err == nil, errdefs.IsNotFound(err):
	case strings.Contains(err.Error(), "is already in progress"):
		slog.Debug("Container removal already in progress", "container_id", containerID)
	default:
		slog.Warn("Failed to remove container", "container_id", containerID, "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
