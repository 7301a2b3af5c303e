package main

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no credentials", "redis://localhost:6379/0", "redis://localhost:6379/0"},
		{"password removed", "postgres://meetapp:s3cret@db:5432/meetapp", "postgres://meetapp@db:5432/meetapp"},
		{"password only", "redis://:s3cret@cache:6379", "redis://redacted@cache:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactURL(tt.raw); got != tt.want {
				t.Errorf("redactURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://meetapp:s3cret@db:5432/meetapp"
	err := errors.New("failed to connect to " + dsn + " (password=s3cret)")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "s3cret") {
		t.Errorf("secret leaked: %q", got)
	}
	if !strings.Contains(got, "postgres://meetapp@db:5432/meetapp") {
		t.Errorf("redacted URL missing: %q", got)
	}

	if sanitizeError(nil, dsn) != "" {
		t.Error("nil error should sanitize to empty string")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
