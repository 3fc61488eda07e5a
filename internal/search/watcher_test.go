package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_FlushesCacheOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce wait")
	}

	dir := t.TempDir()
	writeFile(t, dir, "日報a.txt")

	s := New(dir, nil, 10, time.Hour)
	w, err := NewWatcher(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	kw := keywords(nil, []string{"日報"})
	if got := s.Search(kw, Options{}); len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}

	writeFile(t, dir, "日報b.txt")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.Search(kw, Options{})) == 2 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("cache was never flushed after a file change")
}

func TestWatcher_StopIsIdempotentWithoutStart(t *testing.T) {
	s := New(t.TempDir(), nil, 10, time.Minute)
	w, err := NewWatcher(s)
	if err != nil {
		t.Fatal(err)
	}
	w.Stop()
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	if testing.Short() {
		t.Skip("debounce wait")
	}

	dir := t.TempDir()
	s := New(dir, nil, 10, time.Hour)
	w, err := NewWatcher(s)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	kw := keywords(nil, []string{"日報"})
	if got := s.Search(kw, Options{}); len(got) != 0 {
		t.Fatalf("expected empty dir, got %d results", len(got))
	}

	sub := filepath.Join(dir, "2025年度")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(300 * time.Millisecond)
	writeFile(t, sub, "日報c.txt")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.Search(kw, Options{})) == 1 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("file created in a new subdirectory was never surfaced")
}
