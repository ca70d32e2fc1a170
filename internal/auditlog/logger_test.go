package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggerChainLinksRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	key := make([]byte, 32)

	l, err := New(path, key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Success("iface.add", "p0", 0)
	l.Failure("route.add", "10.0.0.0/24", 0, errTest)

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].PrevHash != "" {
		t.Fatalf("first record should have empty PrevHash, got %q", events[0].PrevHash)
	}
	if events[1].PrevHash != events[0].Hash {
		t.Fatalf("second record's PrevHash %q != first record's Hash %q", events[1].PrevHash, events[0].Hash)
	}
	if events[1].Success {
		t.Fatalf("second record should record failure")
	}
	if events[1].Error == "" {
		t.Fatalf("expected error detail recorded")
	}
}

type testErr string

func (e testErr) Error() string { return string(e) }

var errTest = testErr("boom")
