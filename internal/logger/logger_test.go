package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		level zapcore.Level
	}{
		{name: "dev debug", cfg: Config{Level: "debug", Env: "local"}, level: zapcore.DebugLevel},
		{name: "prod info", cfg: Config{Level: "info", Env: "prod"}, level: zapcore.InfoLevel},
		{name: "warn", cfg: Config{Level: "warn", Env: "local"}, level: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.level))
			assert.False(t, l.Core().Enabled(tt.level-1))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Env: "local"})
	assert.Error(t, err)
}
