package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: WARN, Terminal: &buf, NoColor: true})
	require.NoError(t, err)

	l.Info("HUB", "dropped")
	l.Warn("hub", "kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
	assert.Contains(t, out, "[HUB")
}

func TestFileSinkWritesJSON(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir, Name: "test", Level: DEBUG, NoColor: true})
	require.NoError(t, err)
	l.Error("CHECKIN", "storage failed")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "CHECKIN", entry.Category)
	assert.Equal(t, "storage failed", entry.Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, INFO, ParseLevel("bogus"))
}

func TestDiscardIsSilent(t *testing.T) {
	l := Discard()
	l.Error("X", "nothing")
	l.Close()
}
