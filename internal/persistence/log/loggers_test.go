package log

import (
	"path/filepath"
	"testing"
	"time"

	"sandcave.dev/internal/sim/cave"
)

func TestProgressLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewProgressLogger(dir, "run-1")
	l.w.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	states := []cave.State{
		{Tick: 100, Grains: 7, Settled: 6, Grain: cave.Pos{X: 500, Y: 3}},
		{Tick: 240, Grains: 25, Settled: 24, Grain: cave.Pos{X: 497, Y: 10}},
		{Tick: 999, Grains: 93, Settled: 93, Grain: cave.DefaultSource, Status: cave.Blocked},
	}
	events := []string{EventProgress, EventOverflow, EventBlocked}
	for i, s := range states {
		if err := l.Write(events[i], s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(filepath.Join(dir, "progress"))
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "progress-2026-01-02-03.jsonl.zst" {
		t.Fatalf("files: %v", files)
	}

	got, err := ReadEntries(files[0])
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(got) != len(states) {
		t.Fatalf("entries: got %d want %d", len(got), len(states))
	}
	for i, e := range got {
		if e.Event != events[i] || e.Tick != states[i].Tick || e.Settled != states[i].Settled || e.Grain != states[i].Grain {
			t.Fatalf("entry %d mismatch: %+v", i, e)
		}
		if e.Run != "run-1" {
			t.Fatalf("entry %d run: %q", i, e.Run)
		}
	}
	if got[2].Status != "blocked" {
		t.Fatalf("status: got %q want blocked", got[2].Status)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "progress")
	now := time.Date(2026, 1, 2, 3, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(Entry{Event: EventProgress, Tick: 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(Entry{Event: EventProgress, Tick: 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files after rotation, got %v", files)
	}
	for i, f := range files {
		entries, err := ReadEntries(f)
		if err != nil {
			t.Fatalf("ReadEntries(%s): %v", f, err)
		}
		if len(entries) != 1 || entries[0].Tick != i+1 {
			t.Fatalf("file %s entries: %+v", f, entries)
		}
	}
}
