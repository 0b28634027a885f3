package main

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	persistlog "sandcave.dev/internal/persistence/log"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
)

func TestLogProgress_ResetFollowsEarlierFrames(t *testing.T) {
	paths, err := cave.LoadPaths("../../internal/sim/cave/testdata/sample.txt", cave.ParseOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	sess := session.New(paths, cave.Config{}, session.Options{})
	dir := t.TempDir()
	progress := persistlog.NewProgressLogger(dir, "run_1")

	frames, unsubscribe := sess.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logProgress(frames, progress, 50, log.New(io.Discard, "", 0))
	}()

	for range 3 {
		sess.StepChunk()
	}
	sess.Reset()
	sess.Step(cave.Limit{})
	unsubscribe()
	<-done
	if err := progress.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := persistlog.ListFiles(filepath.Join(dir, "progress"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files: %v %v", files, err)
	}
	entries, err := persistlog.ReadEntries(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var milestones []string
	last := 0
	for _, e := range entries {
		if e.Event != persistlog.EventProgress {
			milestones = append(milestones, e.Event)
		}
		if e.Event == persistlog.EventReset {
			if e.Tick != 0 {
				t.Fatalf("reset entry at tick %d", e.Tick)
			}
		} else if e.Tick < last {
			t.Fatalf("tick went backwards: %d after %d", e.Tick, last)
		}
		last = e.Tick
	}

	want := []string{persistlog.EventOverflow, persistlog.EventReset, persistlog.EventOverflow, persistlog.EventBlocked}
	if len(milestones) != len(want) {
		t.Fatalf("milestones: got %v want %v", milestones, want)
	}
	for i := range want {
		if milestones[i] != want[i] {
			t.Fatalf("milestones: got %v want %v", milestones, want)
		}
	}
	if got := entries[len(entries)-1]; got.Event != persistlog.EventProgress || got.Status != cave.Blocked.String() {
		t.Fatalf("last entry: %+v", got)
	}
}
