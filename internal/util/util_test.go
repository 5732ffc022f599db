package util

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level       string
		wantDebugOn bool
	}{
		{"debug", true},
		{"info", false},
		{"WARN", false},
		{"nonsense", false},
	}
	for _, tt := range tests {
		log := NewLogger(tt.level, "text")
		if log == nil {
			t.Fatalf("NewLogger(%q) returned nil", tt.level)
		}
		got := log.Enabled(context.Background(), slog.LevelDebug)
		if got != tt.wantDebugOn {
			t.Errorf("NewLogger(%q) debug enabled = %v, want %v", tt.level, got, tt.wantDebugOn)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		if log := NewLogger("info", format); log == nil {
			t.Fatalf("NewLogger with format %q returned nil", format)
		}
	}
}
