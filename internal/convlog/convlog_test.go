package convlog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesPerUserNDJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	require.NoError(t, err)

	logger.Log(42, "user_estimate", "Calle Falsa 123\x1b, pintura")
	logger.Log(42, "assistant_estimate", "**Costo:** $500")
	logger.Log(7, "user_media", "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "42.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, int64(42), first.UserID)
	assert.Equal(t, "user_estimate", first.Kind)
	assert.Equal(t, "Calle Falsa 123, pintura", first.Content)

	assert.FileExists(t, filepath.Join(dir, "7.ndjson"))
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	logger, err := New(Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, logger)

	logger.Log(1, "x", "y")
	assert.Zero(t, logger.Dropped())
	assert.NoError(t, logger.Close())
}

func TestLogAfterCloseIsIgnored(t *testing.T) {
	logger, err := New(Config{Enabled: true, Dir: t.TempDir(), QueueSize: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.NotPanics(t, func() { logger.Log(1, "x", "y") })
}
