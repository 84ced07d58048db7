package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gopher0727/AltMur/config"
)

func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := NewLogger(&config.LoggingConfig{
		Level:    level,
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	return logger, logFile
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(content), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("stdout json", func(t *testing.T) {
		logger, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("test message")
	})

	t.Run("stdout console", func(t *testing.T) {
		logger, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("file output", func(t *testing.T) {
		logger, logFile := newFileLogger(t, "info")
		logger.Info("test file message")
		require.NoError(t, logger.Close())

		entries := readEntries(t, logFile)
		require.Len(t, entries, 1)
		assert.Equal(t, "test file message", entries[0]["message"])
		assert.Equal(t, "info", entries[0]["level"])
		assert.NotEmpty(t, entries[0]["timestamp"])
	})

	t.Run("unwritable file", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{
			Output:   "file",
			FilePath: filepath.Join(t.TempDir(), "missing", "dir", "x.log"),
		})
		assert.Error(t, err)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestLogLevelFiltering(t *testing.T) {
	logger, logFile := newFileLogger(t, "warn")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	require.NoError(t, logger.Close())

	var messages []any
	for _, entry := range readEntries(t, logFile) {
		messages = append(messages, entry["message"])
	}
	assert.Equal(t, []any{"warn message", "error message"}, messages)
}

func TestContextLogging(t *testing.T) {
	logger, logFile := newFileLogger(t, "debug")

	ctx := WithTraceID(context.Background(), "trace-abc-123")
	logger.InfoContext(ctx, "with trace")
	logger.WarnContext(context.Background(), "without trace")
	logger.WithFields(zap.String("entity", "User")).ErrorContext(ctx, "with fields")
	require.NoError(t, logger.Close())

	entries := readEntries(t, logFile)
	require.Len(t, entries, 3)

	assert.Equal(t, "trace-abc-123", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
	assert.Equal(t, "trace-abc-123", entries[2]["trace_id"])
	assert.Equal(t, "User", entries[2]["entity"])
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.ErrorContext(context.Background(), "dropped")
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
	assert.NoError(t, logger.Close())
}
