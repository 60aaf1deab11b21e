package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"erizoagent/internal/domain"
)

func TestNewLoggerLevel(t *testing.T) {
	logger, err := NewLogger(domain.LogConfig{Level: "debug"})
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(domain.LogConfig{Level: "warn", Development: true})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(domain.LogConfig{Level: "chatty"})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
