package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
)

func TestLogActionWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewLogger() = %v", err)
	}
	defer logger.Close()

	logger.LogAction("startSession", map[string]interface{}{"sessionId": "abc"}, "SUCCESS")
	logger.LogAction("stopSession", nil, "INVALID_STATE")

	f, err := os.Open(logger.FilePath())
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Action != "startSession" || entries[0].Outcome != "SUCCESS" {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[0].Params["sessionId"] != "abc" {
		t.Errorf("entry[0] params = %v", entries[0].Params)
	}
	if entries[1].Action != "stopSession" || entries[1].Outcome != "INVALID_STATE" {
		t.Errorf("entry[1] = %+v", entries[1])
	}
	if entries[1].Params != nil {
		t.Errorf("entry[1] params = %v, want omitted", entries[1].Params)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("entry timestamp not set")
	}
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/logs"

	logger, err := NewLogger(dir, 10, 1)
	if err != nil {
		t.Fatalf("NewLogger() = %v", err)
	}
	defer logger.Close()

	logger.LogAction("resetSession", nil, "SUCCESS")
	if _, err := os.Stat(logger.FilePath()); err != nil {
		t.Errorf("audit file missing: %v", err)
	}
}
