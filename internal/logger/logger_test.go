package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestFileLoggerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "converter.log")
	l := NewFileLogger(path)

	l.Info("session", "run completed", map[string]interface{}{"annotations": 5})
	l.Error("server", "export failed", map[string]interface{}{"error": errors.New("disk full")})
	l.Debug("session", "zoom", nil)
	_ = l.Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "run completed", lines[0]["message"])
	assert.Equal(t, "session", lines[0]["module"])
	assert.Equal(t, float64(5), lines[0]["details"].(map[string]interface{})["annotations"])
	assert.Contains(t, lines[0], "timestamp")

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "disk full", lines[1]["error"])

	assert.Equal(t, map[string]interface{}{}, lines[2]["details"])
}

func TestZapLoggerFileSkipsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l := NewZapLogger(path, true)

	l.Debug("cli", "hidden", nil)
	l.Warn("cli", "visible", nil)
	_ = l.Sync()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
}

func TestNop(t *testing.T) {
	var l ILogger = NewNop()
	l.Info("m", "x", nil)
	assert.NoError(t, l.Sync())
}
