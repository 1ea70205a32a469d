package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		runID   string
		wantErr bool
	}{
		{
			name:    "valid directory and run ID",
			baseDir: t.TempDir(),
			runID:   "run-123",
			wantErr: false,
		},
		{
			name:    "creates directories if not exist",
			baseDir: filepath.Join(t.TempDir(), "nested", "path"),
			runID:   "run-456",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.baseDir, tt.runID)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer logger.Close()

			if logger.runID != tt.runID {
				t.Errorf("runID = %v, want %v", logger.runID, tt.runID)
			}
			if logger.minLevel != LevelInfo {
				t.Errorf("minLevel = %v, want %v", logger.minLevel, LevelInfo)
			}
			if _, err := os.Stat(filepath.Join(tt.baseDir, "runs", tt.runID+".jsonl")); err != nil {
				t.Errorf("run log not created: %v", err)
			}
		})
	}
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestLogFillsDefaultsAndRoutesErrors(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()
	logger.SetFlowID("flow-9")

	if err := logger.Info(CategoryInterpreter, "block_started", "running", map[string]any{"block": "b1"}); err != nil {
		t.Fatal(err)
	}
	if err := logger.Error(CategoryBrowser, "driver_crash", "session deleted", nil); err != nil {
		t.Fatal(err)
	}

	runEvents := readEvents(t, filepath.Join(dir, "runs", "run-1.jsonl"))
	if len(runEvents) != 2 {
		t.Fatalf("run log events = %d, want 2", len(runEvents))
	}
	if runEvents[0].RunID != "run-1" || runEvents[0].FlowID != "flow-9" {
		t.Errorf("defaults not applied: %+v", runEvents[0])
	}
	if runEvents[0].Timestamp.IsZero() {
		t.Error("timestamp not set")
	}

	errEvents := readEvents(t, filepath.Join(dir, "errors.jsonl"))
	if len(errEvents) != 1 {
		t.Fatalf("error log events = %d, want 1", len(errEvents))
	}
	if errEvents[0].EventType != "driver_crash" {
		t.Errorf("error event type = %s", errEvents[0].EventType)
	}
}

func TestMinLevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-2")
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	if err := logger.Debug(CategoryResolution, "scoring", "candidate scored", nil); err != nil {
		t.Fatal(err)
	}
	if got := readEvents(t, filepath.Join(dir, "runs", "run-2.jsonl")); len(got) != 0 {
		t.Fatalf("debug event written despite info min level: %d", len(got))
	}

	logger.SetMinLevel(LevelDebug)
	if err := logger.Debug(CategoryResolution, "scoring", "candidate scored", nil); err != nil {
		t.Fatal(err)
	}
	if got := readEvents(t, filepath.Join(dir, "runs", "run-2.jsonl")); len(got) != 1 {
		t.Fatalf("debug event not written after lowering level: %d", len(got))
	}
}

func TestBlockEventCarriesBlockID(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, "run-3")
	if err != nil {
		t.Fatal(err)
	}
	defer logger.Close()

	if err := logger.BlockEvent(LevelInfo, CategoryInterpreter, "block_completed", "b7", "done", nil); err != nil {
		t.Fatal(err)
	}
	events := readEvents(t, filepath.Join(dir, "runs", "run-3.jsonl"))
	if len(events) != 1 || events[0].BlockID != "b7" {
		t.Fatalf("block id not recorded: %+v", events)
	}
}
