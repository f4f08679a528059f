package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		enabled zapcore.Level
		muted   zapcore.Level
	}{
		{name: "json info", cfg: Config{Level: "info", Format: "json"}, enabled: zapcore.InfoLevel, muted: zapcore.DebugLevel},
		{name: "console debug", cfg: Config{Level: "debug", Format: "console"}, enabled: zapcore.DebugLevel, muted: zapcore.DebugLevel - 1},
		{name: "default format", cfg: Config{Level: "warn"}, enabled: zapcore.WarnLevel, muted: zapcore.InfoLevel},
		{name: "bad level", cfg: Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			log, err := New(tt.cfg)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.True(log.Core().Enabled(tt.enabled))
			req.False(log.Core().Enabled(tt.muted))
		})
	}
}
