package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		enable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"warn level", "warn", slog.LevelWarn},
		{"default info", "", slog.LevelInfo},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level)
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	logger := Default()
	child := logger.WithComponent("dispatcher")
	if child == nil || child.Logger == nil {
		t.Fatal("WithComponent returned nil logger")
	}
	if child == logger {
		t.Fatal("WithComponent should return a new instance")
	}
	if !child.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("child logger should keep the parent level")
	}
}
