package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, slog.LevelInfo)
	logger.Info("segment failed", "error", errors.New("boom"))

	assert.Contains(t, buf.String(), `"err":"boom"`)
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestNewWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatText, slog.LevelWarn)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
}
