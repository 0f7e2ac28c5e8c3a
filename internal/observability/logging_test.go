package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/taskboard/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level     string
		format    string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", format: "json", wantDebug: true, wantInfo: true},
		{level: "WARN", format: "console", wantDebug: false, wantInfo: false},
		{level: "nonsense", format: "", wantDebug: false, wantInfo: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := NewLogger(config.LoggerConfig{Level: tt.level, Format: tt.format})
			if err != nil {
				t.Fatalf("NewLogger() error: %v", err)
			}
			core := logger.Core()
			if got := core.Enabled(zapcore.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := core.Enabled(zapcore.InfoLevel); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}
