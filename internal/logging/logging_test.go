package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}

	l.Info().Msg("dropped")
	l.Warn().Str("key", "v").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["message"] != "kept" || rec["level"] != "warn" || rec["key"] != "v" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "", "console")
	if err != nil {
		t.Fatal(err)
	}
	l.Info().Msg("hello")
	if out := buf.String(); !strings.Contains(out, "hello") || strings.HasPrefix(out, "{") {
		t.Fatalf("unexpected console output %q", out)
	}
}

func TestNewBadLevel(t *testing.T) {
	if _, err := New(nil, "loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
