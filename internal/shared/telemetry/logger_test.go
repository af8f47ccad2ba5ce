package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestWriteEmitsJSONLine(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Warn("storage.fallback", map[string]any{"err": errors.New("dial tcp: refused"), "file": "a.pdf", "level": "spoofed"})

	line := strings.TrimSpace(buf.String())
	if strings.Count(line, "\n") != 0 {
		t.Fatalf("expected a single line, got %q", line)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["level"] != "warn" {
		t.Fatalf("level = %v, want warn", entry["level"])
	}
	if entry["msg"] != "storage.fallback" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["err"] != "dial tcp: refused" {
		t.Fatalf("err = %v, want error string", entry["err"])
	}
	if entry["file"] != "a.pdf" {
		t.Fatalf("file = %v", entry["file"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts")
	}
}
