package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/estimabot/internal/chat"
)

// HandlerFunc receives converted events.
type HandlerFunc func(chat.Event)

// Poll long-polls for updates until ctx is done. Any registered webhook is
// removed first since Telegram refuses getUpdates while one is set.
func (c *Client) Poll(ctx context.Context, handle HandlerFunc) error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSecs
	updates := c.bot.GetUpdatesChan(u)
	slog.Info("Polling for updates", "bot", c.bot.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			slog.Info("Polling stopped", "reason", ctx.Err())
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if ev, ok := toEvent(upd); ok {
				handle(ev)
			}
		}
	}
}

// SetWebhook registers url as the update destination.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	slog.Info("Webhook registered", "bot", c.bot.Self.UserName)
	return nil
}

// WebhookHandler decodes update payloads posted by Telegram.
func WebhookHandler(handle HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upd, err := decodeUpdate(r)
		if err != nil {
			slog.Warn("Rejected webhook payload", "error", err)
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		if ev, ok := toEvent(*upd); ok {
			handle(ev)
		}
		w.WriteHeader(http.StatusOK)
	})
}

const maxUpdateBytes = 1 << 20

func decodeUpdate(r *http.Request) (*tgbotapi.Update, error) {
	if r.Method != http.MethodPost {
		return nil, fmt.Errorf("method %s not allowed", r.Method)
	}
	var upd tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		return nil, fmt.Errorf("decode update: %w", err)
	}
	return &upd, nil
}
