// Package convlog writes an optional per-user NDJSON log of conversations
// for operators. It is not read back by the bot.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
)

// Config controls the logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one logged line.
type Event struct {
	Time    time.Time `json:"time"`
	UserID  int64     `json:"user_id"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
}

// Logger appends events asynchronously. Events are dropped, and counted,
// when the queue is full. A nil or disabled Logger discards everything.
type Logger struct {
	queue   chan Event
	dir     string
	logger  *slog.Logger
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
}

// New starts a logger. When cfg is disabled it returns a no-op logger.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	l := &Logger{
		queue:  make(chan Event, size),
		dir:    cfg.Dir,
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	logger.Info("Conversation log enabled", "dir", cfg.Dir, "queue_size", size)
	return l, nil
}

// Log queues an event for userID.
func (l *Logger) Log(userID int64, kind, text string) {
	if l == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	ev := Event{Time: time.Now().UTC(), UserID: userID, Kind: kind, Content: clean(text)}
	select {
	case l.queue <- ev:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Conversation log queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes queued events and closes all files.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	files := make(map[int64]*os.File)
	defer func() {
		for id, f := range files {
			if err := f.Close(); err != nil {
				l.logger.Warn("Failed to close conversation log", "user_id", id, "error", err)
			}
		}
	}()

	for ev := range l.queue {
		f, ok := files[ev.UserID]
		if !ok {
			path := filepath.Join(l.dir, strconv.FormatInt(ev.UserID, 10)+".ndjson")
			var err error
			f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
			if err != nil {
				l.logger.Error("Failed to open conversation log", "path", path, "error", err)
				continue
			}
			files[ev.UserID] = f
		}
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			l.logger.Error("Failed to write conversation log", "user_id", ev.UserID, "error", err)
		}
	}
}

// clean drops control characters other than newlines and tabs.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
