package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashureev/estimabot/internal/chat"
)

type sentText struct {
	ChatID  int64
	Text    string
	Buttons []chat.Button
}

type editedText struct {
	MessageID int
	Text      string
	Buttons   []chat.Button
}

type fakeSender struct {
	mu      sync.Mutex
	texts   []sentText
	edits   []editedText
	media   []chat.Media
	present []bool // whether the media file existed during upload

	editErr  error
	mediaErr error
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string, buttons ...chat.Button) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{ChatID: chatID, Text: text, Buttons: buttons})
	return len(f.texts), nil
}

func (f *fakeSender) EditText(_ context.Context, _ int64, messageID int, text string, buttons ...chat.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editedText{MessageID: messageID, Text: text, Buttons: buttons})
	return f.editErr
}

func (f *fakeSender) AnswerButton(context.Context, string) error { return nil }

func (f *fakeSender) SendDocument(context.Context, int64, chat.Document) error { return nil }

func (f *fakeSender) SendMedia(_ context.Context, _ int64, m chat.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := os.Stat(m.Path)
	f.present = append(f.present, err == nil)
	f.media = append(f.media, m)
	return f.mediaErr
}

func (f *fakeSender) lastEdit() editedText {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return editedText{}
	}
	return f.edits[len(f.edits)-1]
}

// fakeAcquirer writes a file of size bytes (sparse) into the request
// directory, then returns err.
type fakeAcquirer struct {
	mu       sync.Mutex
	requests []Request
	size     int64
	meta     Artifact
	err      error
	block    bool
}

func (f *fakeAcquirer) Name() string { return "fake" }

func (f *fakeAcquirer) Acquire(ctx context.Context, req Request) (*Artifact, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	size, meta, err, block := f.size, f.meta, f.err, f.block
	f.mu.Unlock()

	path := filepath.Join(req.Dir, "dQw4w9WgXcQ.bin")
	if size > 0 {
		fh, createErr := os.Create(path)
		if createErr != nil {
			return nil, createErr
		}
		if truncErr := fh.Truncate(size); truncErr != nil {
			_ = fh.Close()
			return nil, truncErr
		}
		if closeErr := fh.Close(); closeErr != nil {
			return nil, closeErr
		}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	art := meta
	art.Path = path
	return &art, nil
}

func (f *fakeAcquirer) lastURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1].URL
}

var errBoom = errors.New("boom")
