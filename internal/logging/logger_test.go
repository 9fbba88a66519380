package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logging.ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, logging.ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, logging.ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, logging.ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, logging.ParseLevel("verbose"))
}

func TestNewLogger_Level(t *testing.T) {
	logger := logging.NewLogger(config.LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewcounter.log")
	logger := logging.NewLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})

	logger.Info("view counted")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"view counted"`)
}
