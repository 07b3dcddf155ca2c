package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSON(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Mode: "production", Level: level, Output: &buf})
	require.NoError(t, err)
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNew_Defaults(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Output: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("shown", "pair", "1/2")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "INFO")
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Config{Mode: "xml"})
	assert.Error(t, err)
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newJSON(t, "debug")

	l.Debug("d")
	l.Info("i")
	l.Warn("w")
	l.Error("e")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 4)
	levels := make([]any, 0, len(entries))
	for _, e := range entries {
		levels = append(levels, e["level"])
	}
	assert.Equal(t, []any{"debug", "info", "warn", "error"}, levels)
}

func TestLogger_Redaction(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.Info("resolved",
		"credential_id", 7,
		"github_access_token", "ghp_secret",
		"payload", `{"token":"x"}`,
		"Authorization", "Bearer abc",
		"connector_id", 3,
	)

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.EqualValues(t, 7, e["credential_id"])
	assert.EqualValues(t, 3, e["connector_id"])
	assert.Equal(t, Redacted, e["github_access_token"])
	assert.Equal(t, Redacted, e["payload"])
	assert.Equal(t, Redacted, e["Authorization"])
	assert.NotContains(t, buf.String(), "ghp_secret")
}

func TestLogger_WithRedacts(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.With("password", "hunter2", "run_id", "r1").Info("child")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, Redacted, entries[0]["password"])
	assert.Equal(t, "r1", entries[0]["run_id"])
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]any{"token", "x", "dangling"})
	assert.Equal(t, []any{"token", Redacted, "dangling"}, out)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("nothing", "k", "v")
	l.With("a", 1).Error("still nothing")
	l.Sync()
}
