package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(output(&buf, "json"))
	logger.Info().Str("component", "pipeline").Msg("run complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "run complete" || entry["component"] != "pipeline" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLoggerConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(output(&buf, "console"))
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in console output, got %q", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Error("console output should not be json")
	}
}

func TestNewLoggerMulti(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b).Level(zerolog.InfoLevel)
	logger.Info().Msg("both")

	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected both writers to receive the entry")
	}
}

func TestInitWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "loopifi.log")
	closeLog, err := Init(Options{Format: "json", File: path})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	logger := WithComponent("jobs")
	logger.Info().Msg("job complete")
	if err := closeLog(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"jobs"`) {
		t.Errorf("log file missing entry: %q", data)
	}
}
