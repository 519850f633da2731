package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    Level
		wantErr bool
	}{
		{"debug", Debug, false},
		{"INFO", Info, false},
		{"", Notice, false},
		{" notice ", Notice, false},
		{"warn", Warning, false},
		{"warning", Warning, false},
		{"error", Error, false},
		{"loud", Notice, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
	if s := Level(42).String(); s != "level(42)" {
		t.Errorf("String of unknown level = %q", s)
	}
}

func TestSetSinkKeepsLevel(t *testing.T) {
	t.Cleanup(func() {
		SetSink(os.Stderr)
		SetLevel(Notice)
	})

	var buf bytes.Buffer
	SetLevel(Warning)
	SetSink(&buf)
	logger := New("logtest")

	logger.Info("hidden")
	logger.Warning("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warning level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "[logtest]") {
		t.Errorf("warning line missing or without module: %q", out)
	}
}
