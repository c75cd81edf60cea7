package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clash.log")

	logger, err := NewLogger("info", "json", path)
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("key created", zap.String("key_id", "k1"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"key created"`)
	assert.Contains(t, out, `"key_id":"k1"`)
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestNewLogger_BadFormat(t *testing.T) {
	_, err := NewLogger("info", "xml", "")
	assert.Error(t, err)
}
