package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hindsight/internal/capture"
)

func TestPublisherWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")
	p := NewPublisher(path)

	if _, ok := p.Last(); ok {
		t.Fatal("Last() reports a record before any write")
	}

	record := Capture{
		LastCaptureUTC:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		WindowTitle:       "Editor",
		WindowBBox:        &capture.Rect{Left: 1, Top: 2, Width: 640, Height: 480},
		EncryptedImage:    "Editor_2026-01-02_03-04-05.png.enc",
		CaptureCount:      7,
		IntervalSec:       5,
		CaptureBackend:    "session",
		ServiceInstanceID: "abc-123",
	}
	if err := p.Write(record); err != nil {
		t.Fatal(err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", got.Sequence)
	}
	if got.WindowTitle != "Editor" || got.CaptureCount != 7 {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if got.WindowBBox == nil || *got.WindowBBox != *record.WindowBBox {
		t.Errorf("bbox = %+v", got.WindowBBox)
	}

	last, ok := p.Last()
	if !ok || last.Sequence != 1 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestPublisherSequenceIncrements(t *testing.T) {
	p := NewPublisher(filepath.Join(t.TempDir(), "status.json"))
	for i := 1; i <= 3; i++ {
		if err := p.Write(Capture{}); err != nil {
			t.Fatal(err)
		}
		last, _ := p.Last()
		if last.Sequence != uint64(i) {
			t.Fatalf("sequence = %d, want %d", last.Sequence, i)
		}
	}
}

func TestPublisherLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(filepath.Join(dir, "status.json"))
	if err := p.Write(Capture{Error: "backend down"}); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "status.json" {
		t.Errorf("unexpected directory contents: %v", entries)
	}
}

func TestStatusFieldNames(t *testing.T) {
	raw, err := json.Marshal(Capture{Paused: true, PauseReason: "screen_locked"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"last_capture_utc", "capture_count", "paused", "pause_reason", "capture_backend", "sequence"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing status field %q", key)
		}
	}
}
