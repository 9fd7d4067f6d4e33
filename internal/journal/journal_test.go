package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hindsight/internal/capture"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := Entry{
		CreatedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		Title:     "Editor",
		Filename:  "Editor_2026-02-03_04-05-06.png",
		Backend:   "session",
		BBox:      capture.Rect{Left: 10, Top: 20, Width: 640, Height: 480},
	}
	if err := store.Record(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, Entry{Title: "Browser", Filename: "Browser.png", Backend: "oneshot", Duplicate: true}); err != nil {
		t.Fatal(err)
	}

	entries, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Title != "Browser" || !entries[0].Duplicate {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Title != "Editor" || entries[1].Duplicate {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if entries[1].BBox != first.BBox {
		t.Errorf("bbox = %+v, want %+v", entries[1].BBox, first.BBox)
	}
	if !entries[1].CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at = %v, want %v", entries[1].CreatedAt, first.CreatedAt)
	}
}

func TestListLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, Entry{Title: "t", Filename: "f.png", Backend: "session"}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := store.List(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("len(entries) = %d, want 3", len(entries))
	}
}

func TestCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("empty count = %d, %v", count, err)
	}
	for i := 0; i < 4; i++ {
		if err := store.Record(ctx, Entry{Title: "t", Filename: "f.png", Backend: "session"}); err != nil {
			t.Fatal(err)
		}
	}
	count, err = store.Count(ctx)
	if err != nil || count != 4 {
		t.Fatalf("count = %d, %v, want 4", count, err)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Record(context.Background(), Entry{Title: "t", Filename: "f.png", Backend: "session"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	count, err := reopened.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("count after reopen = %d, %v", count, err)
	}
}
