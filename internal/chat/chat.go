// Package chat defines the transport-neutral events the bot reacts to and
// the outbound operations it needs from a chat platform.
package chat

import (
	"context"
	"time"
)

// Origin identifies who sent an event and where to answer.
type Origin struct {
	UserID int64
	ChatID int64
}

// Sender returns the user the event belongs to.
func (o Origin) Sender() int64 { return o.UserID }

// Event is anything delivered by the transport.
type Event interface {
	Sender() int64
}

// Command is a slash command such as /start.
type Command struct {
	Origin
	Name string
	Args string
}

// TextMessage is a plain text message.
type TextMessage struct {
	Origin
	MessageID int
	Text      string
	// ReplyTo is set when the message replies to a document.
	ReplyTo *DocumentRef
}

// DocumentRef describes a document a message replies to.
type DocumentRef struct {
	MIMEType string
	FileName string
}

// ButtonPress is an inline button callback.
type ButtonPress struct {
	Origin
	CallbackID string
	MessageID  int
	Data       string
}

// Button is one inline choice.
type Button struct {
	Label string
	Data  string
}

// Document is an in-memory file sent as a document.
type Document struct {
	FileName string
	MIMEType string
	Data     []byte
	Caption  string
}

// MediaKind selects how a media file is uploaded.
type MediaKind int

const (
	MediaAudio MediaKind = iota
	MediaVideo
)

// Media is a local file uploaded as audio or video. Zero metadata fields are
// left out of the upload.
type Media struct {
	Kind      MediaKind
	Path      string
	Title     string
	Performer string
	Caption   string
	Duration  time.Duration
	Width     int
	Height    int
}

// Sender is the outbound side of the chat platform.
type Sender interface {
	// SendText sends a message, optionally with one row of buttons, and
	// returns its message ID.
	SendText(ctx context.Context, chatID int64, text string, buttons ...Button) (int, error)

	// EditText replaces the text (and buttons) of a sent message.
	EditText(ctx context.Context, chatID int64, messageID int, text string, buttons ...Button) error

	// AnswerButton acknowledges a button press.
	AnswerButton(ctx context.Context, callbackID string) error

	// SendDocument uploads a document.
	SendDocument(ctx context.Context, chatID int64, doc Document) error

	// SendMedia uploads a local audio or video file.
	SendMedia(ctx context.Context, chatID int64, m Media) error
}
