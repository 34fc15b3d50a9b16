package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "medchat.log")

	logger, err := New(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Debug("hello")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("Expected JSON log line, got %s", data)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "verbose"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medchat.log")

	logger, err := New(Options{Level: "WARN", File: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") || !strings.Contains(string(data), "loud") {
		t.Errorf("Unexpected log content %s", data)
	}
}
