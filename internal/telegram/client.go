// Package telegram connects the bot to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/estimabot/internal/chat"
)

const pollTimeoutSecs = 60

// Options configures the Telegram client.
type Options struct {
	// Endpoint overrides tgbotapi.APIEndpoint, mainly for tests.
	Endpoint       string
	ConnectTimeout time.Duration
	UploadTimeout  time.Duration
}

// Client implements chat.Sender on top of the Bot API. Uploads go through a
// separate HTTP client with longer timeouts.
type Client struct {
	bot    *tgbotapi.BotAPI
	upload *tgbotapi.BotAPI
}

// New authenticates with token and returns a client.
func New(token string, opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	control := &http.Client{Timeout: (pollTimeoutSecs + 30) * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, control)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	uploadClient := &http.Client{
		Timeout: opts.UploadTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.UploadTimeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
	upload, err := tgbotapi.NewBotAPIWithClient(token, endpoint, uploadClient)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram for uploads: %w", err)
	}

	slog.Info("Telegram client initialized", "bot", bot.Self.UserName)
	return &Client{bot: bot, upload: upload}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendText implements chat.Sender.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, buttons ...chat.Button) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = keyboard(buttons)
	}
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditText implements chat.Sender. Without buttons the keyboard is removed.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, buttons ...chat.Button) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if len(buttons) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard(buttons))
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

// AnswerButton implements chat.Sender.
func (c *Client) AnswerButton(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// SendDocument implements chat.Sender.
func (c *Client) SendDocument(ctx context.Context, chatID int64, doc chat.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.FileName, Bytes: doc.Data})
	cfg.Caption = doc.Caption
	if _, err := c.upload.Send(cfg); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	return nil
}

// SendMedia implements chat.Sender.
func (c *Client) SendMedia(ctx context.Context, chatID int64, m chat.Media) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch m.Kind {
	case chat.MediaAudio:
		cfg := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(m.Path))
		cfg.Title = m.Title
		cfg.Performer = m.Performer
		cfg.Caption = m.Caption
		cfg.Duration = int(m.Duration / time.Second)
		if _, err := c.upload.Send(cfg); err != nil {
			return fmt.Errorf("send audio: %w", err)
		}
		return nil
	case chat.MediaVideo:
		return c.sendVideo(chatID, m)
	default:
		return errors.New("unknown media kind")
	}
}

// sendVideo posts sendVideo directly because VideoConfig cannot carry the
// dimensions.
func (c *Client) sendVideo(chatID int64, m chat.Media) error {
	params := tgbotapi.Params{"chat_id": strconv.FormatInt(chatID, 10)}
	params.AddNonEmpty("caption", m.Caption)
	params.AddNonZero("duration", int(m.Duration/time.Second))
	params.AddNonZero("width", m.Width)
	params.AddNonZero("height", m.Height)
	params.AddBool("supports_streaming", true)

	files := []tgbotapi.RequestFile{{Name: "video", Data: tgbotapi.FilePath(m.Path)}}
	if _, err := c.upload.UploadFiles("sendVideo", params, files); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}
