package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Sweep removes entries of dir last modified more than maxAge ago and
// returns how many were removed. A missing dir is not an error.
func Sweep(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Janitor failed to remove stale artifact", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartJanitor periodically removes artifacts left behind in dir, for
// example by a crash mid-download. The interval must be positive.
func StartJanitor(ctx context.Context, dir string, interval, maxAge time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("janitor interval must be > 0, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Janitor started", "dir", dir, "interval", interval, "max_age", maxAge)

		for {
			select {
			case now := <-ticker.C:
				removed, err := Sweep(dir, maxAge, now)
				if err != nil {
					slog.Error("Janitor sweep failed", "dir", dir, "error", err)
					continue
				}
				if removed > 0 {
					slog.Info("Janitor removed stale artifacts", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return nil
}
