package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestComponentLoggerPicksUpInit(t *testing.T) {
	// Created before Init, as package-level loggers are.
	log := L("fetcher")

	var buf bytes.Buffer
	Init("json", "debug", &buf)
	defer Init("text", "warn", nil)

	log.Debug("cache hit", KeyURI, "http://host/prefabs")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry[KeyComponent] != "fetcher" {
		t.Errorf("expected component fetcher, got %v", entry[KeyComponent])
	}
	if entry[KeyURI] != "http://host/prefabs" {
		t.Errorf("expected uri attr, got %v", entry[KeyURI])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "warn", &buf)
	defer Init("text", "warn", nil)

	L("loader").Info("hidden")
	L("loader").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing, got %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected logger from context")
	}
}
