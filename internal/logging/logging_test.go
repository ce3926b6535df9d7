package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerLevelAndJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(Config{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("ticker", "AAA").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected one line above warn, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("json output expected: %v", err)
	}
	if entry["ticker"] != "AAA" || entry["level"] != "warn" {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestWithRunAddsID(t *testing.T) {
	var buf bytes.Buffer
	logger, id := WithRun(newLogger(Config{}, &buf))
	if id == "" {
		t.Fatal("run id should not be empty")
	}
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["run_id"] != id {
		t.Fatalf("run_id should be %s, got %v", id, entry["run_id"])
	}
}
