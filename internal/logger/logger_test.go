package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, parseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, logrus.ErrorLevel, parseLevel("Error"))
	assert.Equal(t, logrus.InfoLevel, parseLevel(""))
	assert.Equal(t, logrus.InfoLevel, parseLevel("verbose"))
}

func TestInitializeJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	Initialize(Options{Level: "INFO", Format: "json", File: path})
	t.Cleanup(func() { Initialize(Options{}) })

	WithProvider("speech", "azure-speech").Warn("Speech synthesis failed")
	Debug("hidden at info level", nil)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Speech synthesis failed", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "speech", entry["capability"])
	assert.Equal(t, "azure-speech", entry["provider"])
}
