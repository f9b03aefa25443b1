package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentStamping(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	sync := logger.WithComponent(ComponentSync)
	if sync.Component() != ComponentSync {
		t.Fatalf("component = %q", sync.Component())
	}

	sync.InfoContext(context.Background(), "Sync started", FieldUserID, "u1")
	out := buf.String()
	if !strings.Contains(out, "component="+ComponentSync) {
		t.Errorf("record missing component: %s", out)
	}
	if !strings.Contains(out, "user_id=u1") {
		t.Errorf("record missing field: %s", out)
	}
}
