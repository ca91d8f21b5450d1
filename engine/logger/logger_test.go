package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelParsing(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level("debug").Level())
	assert.Equal(t, zapcore.WarnLevel, Level("warn").Level())
	assert.Equal(t, zapcore.ErrorLevel, Level("error").Level())
	assert.Equal(t, zapcore.InfoLevel, Level("info").Level())
	assert.Equal(t, zapcore.InfoLevel, Level("verbose").Level())
}

func TestNewBuildsLogger(t *testing.T) {
	l, err := New(Config{Level: "debug", RunID: "test-run"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	dev, err := New(Config{Development: true})
	require.NoError(t, err)
	assert.False(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l, err := New(Config{})
	require.NoError(t, err)
	assert.Same(t, l, OrNop(l))
}
