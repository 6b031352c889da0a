package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env, level string
		enabled    zapcore.Level
		disabled   zapcore.Level
	}{
		{"production", "warn", zapcore.WarnLevel, zapcore.InfoLevel},
		{"development", "debug", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"development", "bogus", zapcore.InfoLevel, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := New(tt.env, tt.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}
}
