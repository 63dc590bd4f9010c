// Package intent decides which pipeline handles an inbound text message.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the routing decision for a message.
type Kind int

const (
	KindEstimate Kind = iota
	KindMedia
)

func (k Kind) String() string {
	if k == KindMedia {
		return "media"
	}
	return "estimate"
}

// Intent is the classified message.
type Intent struct {
	Kind Kind
	URL  string // set for KindMedia
	Text string
}

// Watch links, short links, embed links, shorts and any other path carrying
// a v= query parameter. The match is anchored at the start of the message
// after optional scheme and host prefixes.
var mediaURLPattern = regexp.MustCompile(
	`^(?i:https?://)?(?i:www\.|m\.)?(?i:youtube\.com|youtu\.be|youtube-nocookie\.com)/` +
		`(?:watch\?(?:[^\s#]*&)?v=|embed/|v/|shorts/|live/|[^\s?#]+\?(?:[^\s#]*&)?v=)?` +
		`[A-Za-z0-9_-]{11}`)

// Classify routes text to the media pipeline when it starts with a video
// link; everything else is estimate input. It never rejects input.
func Classify(text string) Intent {
	trimmed := strings.TrimSpace(text)
	if loc := mediaURLPattern.FindStringIndex(trimmed); loc != nil {
		return Intent{Kind: KindMedia, URL: firstField(trimmed), Text: text}
	}
	return Intent{Kind: KindEstimate, Text: text}
}

func firstField(s string) string {
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
