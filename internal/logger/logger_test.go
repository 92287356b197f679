package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo, "json")

	l.Info("resolution finished", "entries", 3)
	l.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "resolution finished", rec["message"])
	assert.Equal(t, "INFO", rec["level"])
	assert.EqualValues(t, 3, rec["entries"])
	assert.Contains(t, rec, "timestamp")
}

func TestNew_Pretty(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug, "text").With("session", "abc")

	l.WithGroup("fetch").Debug("fetched sitemap", "source", "https://example.com/a b.xml", "bytes", 12)

	out := buf.String()
	assert.Contains(t, out, "DEBUG fetched sitemap")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, `fetch.source="https://example.com/a b.xml"`)
	assert.Contains(t, out, "fetch.bytes=12")
}

func TestPrettyHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn, "text")

	l.Info("skipped")
	assert.Empty(t, buf.String())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
