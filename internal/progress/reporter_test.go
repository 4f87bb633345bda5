package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1024 * 1024, "1.0 MiB"},
		{256 * 1024 * 1024, "256 MiB"},
		{1024 * 1024 * 1024, "1.0 GiB"},
		{1024 * 1024 * 1024 * 1024, "1.0 TiB"},
		{2.5 * 1024 * 1024 * 1024 * 1024, "2.5 TiB"},
	}

	for _, tt := range tests {
		result := FormatBytes(tt.input)
		if result != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
	}{
		{"100", 100},
		{"100B", 100},
		{"1KiB", 1024},
		{"1.5KiB", 1536},
		{"256MiB", 256 * 1024 * 1024},
		{"64 MiB", 64 * 1024 * 1024},
		{"1GiB", 1024 * 1024 * 1024},
		{"1TiB", 1024 * 1024 * 1024 * 1024},
		// SI units
		{"1KB", 1000},
		{"1MB", 1000 * 1000},
		{"1GB", 1000 * 1000 * 1000},
	}

	for _, tt := range tests {
		result, err := ParseBytes(tt.input)
		if err != nil {
			t.Errorf("ParseBytes(%q): %v", tt.input, err)
			continue
		}
		if result != tt.expected {
			t.Errorf("ParseBytes(%q) = %d, want %d", tt.input, result, tt.expected)
		}
	}
}

func TestParseBytesInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "", "-5MB"} {
		if _, err := ParseBytes(input); err == nil {
			t.Errorf("ParseBytes(%q): expected error", input)
		}
	}
}

func TestReporterStartStop(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{
		Label:          "Downloading prefabs",
		TotalSize:      1024 * 1024,
		Output:         &out,
		UpdateInterval: 10 * time.Millisecond,
	})

	reporter.Start()
	reporter.Update(0.25)
	time.Sleep(30 * time.Millisecond)
	reporter.Update(1)
	reporter.Stop()

	// Stop is idempotent.
	reporter.Stop()

	if reporter.Fraction() != 1 {
		t.Errorf("expected fraction 1, got %v", reporter.Fraction())
	}
	if !strings.Contains(out.String(), "Downloading prefabs: 100.0% | Complete!") {
		t.Errorf("expected completion line, got %q", out.String())
	}
}

func TestReporterStoppedEarly(t *testing.T) {
	var out bytes.Buffer
	reporter := NewReporter(Options{Label: "Loading", Output: &out, UpdateInterval: time.Hour})

	reporter.Start()
	reporter.Update(0.5)
	reporter.Stop()

	if !strings.Contains(out.String(), "Loading: 50.0% | Stopped") {
		t.Errorf("expected stopped line, got %q", out.String())
	}
}

func TestReporterStopWithoutStart(t *testing.T) {
	reporter := NewReporter(Options{})
	reporter.Stop() // must not block
}
