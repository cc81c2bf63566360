package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/leadcrm/internal/config"
)

func TestNewLogger_Level(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "WARN", Encoding: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(config.LoggerConfig{Level: "nonsense"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestForApp(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := ForApp(zap.New(core), config.AppConfig{Name: "leadcrm", Env: "test", Version: "1.2.3"}, "cli")
	logger.Info("hello")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "cli", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "leadcrm", fields["app"])
	assert.Equal(t, "1.2.3", fields["version"])

	assert.NotPanics(t, func() { ForApp(nil, config.AppConfig{}, "x").Info("dropped") })
}
