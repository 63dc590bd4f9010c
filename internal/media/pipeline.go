package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/estimabot/internal/chat"
	"github.com/ashureev/estimabot/internal/domain"
	"github.com/ashureev/estimabot/internal/messages"
	"github.com/ashureev/estimabot/internal/metrics"
)

// Button callback data.
const (
	DataAudio  = "yt_audio"
	DataVideo  = "yt_video"
	DataRetry  = "yt_retry"
	DataCancel = "yt_cancel"
)

var errUpload = errors.New("upload failed")

// PendingStore keeps each user's pending download choice.
type PendingStore interface {
	SetPending(userID int64, p domain.Pending)
	Pending(userID int64) (domain.Pending, bool)
	UpdatePending(userID int64, fn func(*domain.Pending)) (domain.Pending, bool)
	SetDownloadState(userID int64, state domain.DownloadState) bool
	ClearPending(userID int64)
}

// Options configures a Pipeline.
type Options struct {
	DownloadDir    string
	AcquireTimeout time.Duration
	MaxVideoBytes  int64
	Metrics        *metrics.Recorder
}

// Pipeline drives the download state machine for each user:
// awaiting choice → downloading → delivered, failed or cancelled.
type Pipeline struct {
	store    PendingStore
	acquirer Acquirer
	sender   chat.Sender
	catalog  *messages.Catalog
	metrics  *metrics.Recorder

	downloadDir    string
	acquireTimeout time.Duration
	maxVideoBytes  int64
	newID          func() string
}

// NewPipeline creates a media pipeline.
func NewPipeline(store PendingStore, acquirer Acquirer, sender chat.Sender, catalog *messages.Catalog, opts Options) *Pipeline {
	return &Pipeline{
		store:          store,
		acquirer:       acquirer,
		sender:         sender,
		catalog:        catalog,
		metrics:        opts.Metrics,
		downloadDir:    opts.DownloadDir,
		acquireTimeout: opts.AcquireTimeout,
		maxVideoBytes:  opts.MaxVideoBytes,
		newID:          uuid.NewString,
	}
}

// Offer stores url as the user's pending choice, replacing any earlier one,
// and asks which format to download.
func (p *Pipeline) Offer(ctx context.Context, from chat.Origin, url string) error {
	p.store.SetPending(from.UserID, domain.Pending{URL: url, State: domain.StateAwaitingChoice})
	if _, err := p.sender.SendText(ctx, from.ChatID, p.catalog.MediaDetected, p.choiceButtons()...); err != nil {
		return fmt.Errorf("send format choice: %w", err)
	}
	return nil
}

// Choose downloads the pending URL in format and uploads it. The pending
// choice is kept until delivery so a failed attempt can be retried.
func (p *Pipeline) Choose(ctx context.Context, press chat.ButtonPress, format domain.Format) error {
	pending, ok := p.store.UpdatePending(press.UserID, func(pd *domain.Pending) {
		pd.Format = format
		pd.State = domain.StateDownloading
	})
	if !ok {
		p.edit(ctx, press, p.catalog.MissingURL)
		return nil
	}

	p.edit(ctx, press, p.progressText(format))
	return p.download(ctx, press, pending.URL, format)
}

// Retry repeats the last attempted format, or asks for a format again when
// none was attempted yet.
func (p *Pipeline) Retry(ctx context.Context, press chat.ButtonPress) error {
	pending, ok := p.store.Pending(press.UserID)
	if !ok {
		p.edit(ctx, press, p.catalog.MissingURL)
		return nil
	}
	if !pending.CanRetry() {
		p.store.SetDownloadState(press.UserID, domain.StateAwaitingChoice)
		p.edit(ctx, press, p.catalog.MediaDetected, p.choiceButtons()...)
		return nil
	}
	return p.Choose(ctx, press, pending.Format)
}

// Cancel forgets the pending choice.
func (p *Pipeline) Cancel(ctx context.Context, press chat.ButtonPress) error {
	p.finish(press.UserID, domain.StateCancelled)
	p.edit(ctx, press, p.catalog.Cancelled)
	return nil
}

// finish ends the user's download flow in a final state. The pending choice
// is dropped, which leaves the user idle.
func (p *Pipeline) finish(userID int64, state domain.DownloadState) {
	p.store.ClearPending(userID)
	p.metrics.ObserveDownloadFinished(string(state))
	slog.Debug("Download flow finished", "user_id", userID, "state", state)
}

func (p *Pipeline) download(ctx context.Context, press chat.ButtonPress, url string, format domain.Format) error {
	workDir := filepath.Join(p.downloadDir, p.newID())
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return p.fail(ctx, press, fmt.Errorf("create work dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			slog.Error("Failed to remove work dir", "path", workDir, "error", err)
		}
	}()

	start := time.Now()
	art, err := p.acquire(ctx, Request{URL: url, Format: format, Dir: workDir})
	if art != nil {
		defer removeArtifact(art.Path)
	}
	if err == nil {
		err = p.validate(art, format)
	}
	p.metrics.ObserveAcquisition(p.acquirer.Name(), string(format), outcome(err), time.Since(start))

	var oversize *OversizeError
	switch {
	case errors.As(err, &oversize):
		slog.Info("Video above upload ceiling",
			"user_id", press.UserID, "size", oversize.Size, "limit", oversize.Limit)
		p.store.SetDownloadState(press.UserID, domain.StateAwaitingChoice)
		p.edit(ctx, press, p.catalog.OversizeWarning(oversize.Size, oversize.Limit),
			chat.Button{Label: p.catalog.ButtonAudio, Data: DataAudio},
			chat.Button{Label: p.catalog.ButtonCancel, Data: DataCancel},
		)
		return err
	case err != nil:
		return p.fail(ctx, press, err)
	}

	if err := p.sender.SendMedia(ctx, press.ChatID, mediaFor(art, format)); err != nil {
		return p.fail(ctx, press, fmt.Errorf("%w: %s: %w", errUpload, format, err))
	}
	p.metrics.AddDelivered(string(format), art.Size)

	p.finish(press.UserID, domain.StateDelivered)
	slog.Info("Media delivered",
		"user_id", press.UserID, "format", format, "backend", p.acquirer.Name(), "bytes", art.Size)
	p.edit(ctx, press, p.deliveredText(format))
	return nil
}

func (p *Pipeline) acquire(ctx context.Context, req Request) (*Artifact, error) {
	actx := ctx
	if p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}
	art, err := p.acquirer.Acquire(actx, req)
	if err != nil && !errors.Is(err, ErrTimeout) && errors.Is(actx.Err(), context.DeadlineExceeded) {
		err = acquisitionError(p.acquirer.Name(), ErrTimeout, err)
	}
	return art, err
}

// validate fills in the artifact size and applies the upload ceiling, which
// only binds video.
func (p *Pipeline) validate(art *Artifact, format domain.Format) error {
	if art == nil || art.Path == "" {
		return ErrEmptyArtifact
	}
	info, err := os.Stat(art.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmptyArtifact, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return ErrEmptyArtifact
	}
	art.Size = info.Size()
	if format == domain.FormatVideo && p.maxVideoBytes > 0 && art.Size > p.maxVideoBytes {
		return &OversizeError{Size: art.Size, Limit: p.maxVideoBytes}
	}
	return nil
}

// fail records the failure and offers retry and cancel. The pending choice
// is kept.
func (p *Pipeline) fail(ctx context.Context, press chat.ButtonPress, err error) error {
	p.store.SetDownloadState(press.UserID, domain.StateFailed)
	p.edit(ctx, press, p.failureText(err),
		chat.Button{Label: p.catalog.ButtonRetry, Data: DataRetry},
		chat.Button{Label: p.catalog.ButtonCancel, Data: DataCancel},
	)
	return err
}

// edit updates the prompt message. Failures are logged and dropped: the
// upload outcome is what counts.
func (p *Pipeline) edit(ctx context.Context, press chat.ButtonPress, text string, buttons ...chat.Button) {
	if err := p.sender.EditText(ctx, press.ChatID, press.MessageID, text, buttons...); err != nil {
		slog.Warn("Status message update failed",
			"user_id", press.UserID, "chat_id", press.ChatID, "message_id", press.MessageID, "error", err)
	}
}

func (p *Pipeline) choiceButtons() []chat.Button {
	return []chat.Button{
		{Label: p.catalog.ButtonAudio, Data: DataAudio},
		{Label: p.catalog.ButtonVideo, Data: DataVideo},
	}
}

func (p *Pipeline) progressText(format domain.Format) string {
	if format == domain.FormatAudio {
		return p.catalog.DownloadingAudio
	}
	return p.catalog.DownloadingVideo
}

func (p *Pipeline) deliveredText(format domain.Format) string {
	if format == domain.FormatAudio {
		return p.catalog.AudioDelivered
	}
	return p.catalog.VideoDelivered
}

func (p *Pipeline) failureText(err error) string {
	switch {
	case errors.Is(err, ErrNoStreamFound):
		return p.catalog.NoStream
	case errors.Is(err, ErrTimeout):
		return p.catalog.Timeout
	case errors.Is(err, ErrSiteBlocked):
		return p.catalog.SiteBlocked
	case errors.Is(err, ErrEmptyArtifact):
		return p.catalog.EmptyArtifact
	case errors.Is(err, errUpload):
		return p.catalog.UploadFailed
	default:
		return p.catalog.DownloadFailed
	}
}

func mediaFor(art *Artifact, format domain.Format) chat.Media {
	if format == domain.FormatAudio {
		return chat.Media{
			Kind:      chat.MediaAudio,
			Path:      art.Path,
			Title:     art.Title,
			Performer: art.Author,
			Duration:  art.Duration,
		}
	}
	return chat.Media{
		Kind:     chat.MediaVideo,
		Path:     art.Path,
		Title:    art.Title,
		Caption:  art.Title,
		Duration: art.Duration,
		Width:    art.Width,
		Height:   art.Height,
	}
}

func removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove artifact", "path", path, "error", err)
	}
}
