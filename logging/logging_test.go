package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Named("trainer").Warn("shown", zap.Int("rows", 40))
	require.NoError(t, closer())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "trainer")
	assert.Contains(t, out, `"rows": 40`)
}

func TestNewWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "scalpguard.log")
	logger, closer, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)

	logger.Debug("model saved", zap.String("path", "model.json"))
	require.NoError(t, closer())

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "model saved", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "model.json", entry["path"])
	assert.Contains(t, buf.String(), "model saved")
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}
