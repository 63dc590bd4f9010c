package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/estimabot/internal/chat"
)

// toEvent converts an update to a chat event. Updates the bot does not react
// to return false.
func toEvent(u tgbotapi.Update) (chat.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return nil, false
		}
		return chat.ButtonPress{
			Origin:     chat.Origin{UserID: cq.From.ID, ChatID: cq.Message.Chat.ID},
			CallbackID: cq.ID,
			MessageID:  cq.Message.MessageID,
			Data:       cq.Data,
		}, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil, false
	}
	from := chat.Origin{UserID: msg.From.ID, ChatID: msg.Chat.ID}

	if msg.IsCommand() {
		return chat.Command{
			Origin: from,
			Name:   strings.ToLower(msg.Command()),
			Args:   msg.CommandArguments(),
		}, true
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, false
	}

	ev := chat.TextMessage{
		Origin:    from,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	if reply := msg.ReplyToMessage; reply != nil && reply.Document != nil {
		ev.ReplyTo = &chat.DocumentRef{
			MIMEType: reply.Document.MimeType,
			FileName: reply.Document.FileName,
		}
	}
	return ev, true
}

// keyboard lays buttons out in a single row.
func keyboard(buttons []chat.Button) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
