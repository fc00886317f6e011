package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewWithMode(t *testing.T) {
	tests := []struct {
		mode    string
		verbose bool
		debug   bool
		info    bool
	}{
		{"", false, false, true},
		{"", true, true, true},
		{"dev", false, false, true},
		{"Development", true, true, true},
	}
	for _, tt := range tests {
		l, err := NewWithMode(tt.mode, tt.verbose)
		require.NoError(t, err)
		assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel), "mode %q verbose %v", tt.mode, tt.verbose)
		assert.Equal(t, tt.info, l.Core().Enabled(zapcore.InfoLevel))
	}
}

func TestNewReadsEnv(t *testing.T) {
	t.Setenv(EnvMode, "dev")
	l, err := New(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
