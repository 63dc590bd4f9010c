// Package bot routes chat events to the estimate and media pipelines.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/estimabot/internal/chat"
	"github.com/ashureev/estimabot/internal/domain"
	"github.com/ashureev/estimabot/internal/estimate"
	"github.com/ashureev/estimabot/internal/intent"
	"github.com/ashureev/estimabot/internal/media"
	"github.com/ashureev/estimabot/internal/messages"
	"github.com/ashureev/estimabot/internal/metrics"
)

// EstimateFlow is the estimate pipeline as used by the controller.
type EstimateFlow interface {
	SubmitTurn(userID int64, text string, isRevision bool)
	Generate(ctx context.Context, userID int64) (domain.Estimate, error)
	Render(ctx context.Context, est domain.Estimate) (chat.Document, error)
	Commit(userID int64, est domain.Estimate)
	Reset(userID int64)
}

// MediaFlow is the media pipeline as used by the controller.
type MediaFlow interface {
	Offer(ctx context.Context, from chat.Origin, url string) error
	Choose(ctx context.Context, press chat.ButtonPress, format domain.Format) error
	Retry(ctx context.Context, press chat.ButtonPress) error
	Cancel(ctx context.Context, press chat.ButtonPress) error
}

// ConversationLog records what users asked and what they got back.
type ConversationLog interface {
	Log(userID int64, kind, text string)
}

// Controller handles one event at a time for a user. Failures are turned
// into a single catalog sentence; details only reach the log.
type Controller struct {
	sender   chat.Sender
	estimate EstimateFlow
	media    MediaFlow
	catalog  *messages.Catalog
	metrics  *metrics.Recorder
	convLog  ConversationLog
}

// NewController wires the pipelines. metrics and convLog may be nil.
func NewController(sender chat.Sender, est EstimateFlow, med MediaFlow, catalog *messages.Catalog, rec *metrics.Recorder, convLog ConversationLog) *Controller {
	return &Controller{
		sender:   sender,
		estimate: est,
		media:    med,
		catalog:  catalog,
		metrics:  rec,
		convLog:  convLog,
	}
}

// Handle dispatches ev. Unknown events are ignored.
func (c *Controller) Handle(ctx context.Context, ev chat.Event) {
	switch e := ev.(type) {
	case chat.Command:
		c.metrics.IncEvent("command")
		c.handleCommand(ctx, e)
	case chat.TextMessage:
		c.metrics.IncEvent("text")
		c.handleText(ctx, e)
	case chat.ButtonPress:
		c.metrics.IncEvent("button")
		c.handleButton(ctx, e)
	default:
		slog.Debug("Ignoring unsupported event", "type", typeName(ev))
	}
}

func (c *Controller) handleCommand(ctx context.Context, cmd chat.Command) {
	switch cmd.Name {
	case "start", "help":
		c.reply(ctx, cmd.Origin, c.catalog.Start)
	case "nuevo", "new":
		c.estimate.Reset(cmd.UserID)
		c.log(cmd.UserID, "reset", "")
		c.reply(ctx, cmd.Origin, c.catalog.Reset)
	default:
		slog.Debug("Ignoring unknown command", "user_id", cmd.UserID, "command", cmd.Name)
	}
}

func (c *Controller) handleText(ctx context.Context, msg chat.TextMessage) {
	in := intent.Classify(msg.Text)
	c.log(msg.UserID, "user_"+in.Kind.String(), msg.Text)

	if in.Kind == intent.KindMedia {
		if err := c.media.Offer(ctx, msg.Origin, in.URL); err != nil {
			slog.Error("Failed to offer media formats", "user_id", msg.UserID, "chat_id", msg.ChatID, "error", err)
		}
		return
	}
	c.runEstimate(ctx, msg)
}

func (c *Controller) runEstimate(ctx context.Context, msg chat.TextMessage) {
	revision := msg.ReplyTo != nil && msg.ReplyTo.MIMEType == estimate.DocumentMIMEType
	start := time.Now()

	c.estimate.SubmitTurn(msg.UserID, msg.Text, revision)

	est, err := c.estimate.Generate(ctx, msg.UserID)
	if err != nil {
		c.estimateFailed(ctx, msg, "completion_error", revision, err)
		return
	}
	doc, err := c.estimate.Render(ctx, est)
	if err != nil {
		c.estimateFailed(ctx, msg, "render_error", revision, err)
		return
	}
	if err := c.sender.SendDocument(ctx, msg.ChatID, doc); err != nil {
		c.estimateFailed(ctx, msg, "send_error", revision, err)
		return
	}
	c.estimate.Commit(msg.UserID, est)

	c.metrics.ObserveEstimate("ok", revision)
	c.log(msg.UserID, "assistant_estimate", est.Content)
	slog.Info("Estimate delivered",
		"user_id", msg.UserID,
		"revision", revision,
		"file", doc.FileName,
		"bytes", len(doc.Data),
		"duration", time.Since(start))
}

func (c *Controller) estimateFailed(ctx context.Context, msg chat.TextMessage, outcome string, revision bool, err error) {
	c.metrics.ObserveEstimate(outcome, revision)
	level := slog.LevelError
	if errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "Estimate failed",
		"user_id", msg.UserID, "chat_id", msg.ChatID, "stage", outcome, "error", err)
	c.reply(ctx, msg.Origin, c.catalog.EstimateFailed)
}

func (c *Controller) handleButton(ctx context.Context, press chat.ButtonPress) {
	if err := c.sender.AnswerButton(ctx, press.CallbackID); err != nil {
		slog.Warn("Failed to answer button", "user_id", press.UserID, "error", err)
	}

	var err error
	switch press.Data {
	case media.DataAudio:
		err = c.media.Choose(ctx, press, domain.FormatAudio)
	case media.DataVideo:
		err = c.media.Choose(ctx, press, domain.FormatVideo)
	case media.DataRetry:
		err = c.media.Retry(ctx, press)
	case media.DataCancel:
		err = c.media.Cancel(ctx, press)
	default:
		slog.Debug("Ignoring unknown button", "user_id", press.UserID, "data", press.Data)
		return
	}
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, media.ErrOversizeArtifact) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "Media request failed", "user_id", press.UserID, "action", press.Data, "error", err)
	}
}

func (c *Controller) reply(ctx context.Context, to chat.Origin, text string) {
	if _, err := c.sender.SendText(ctx, to.ChatID, text); err != nil {
		slog.Error("Failed to send reply", "user_id", to.UserID, "chat_id", to.ChatID, "error", err)
	}
}

func (c *Controller) log(userID int64, kind, text string) {
	if c.convLog != nil {
		c.convLog.Log(userID, kind, text)
	}
}

func typeName(ev chat.Event) string {
	if ev == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", ev)
}
