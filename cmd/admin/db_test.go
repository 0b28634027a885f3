package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"sandcave.dev/internal/persistence/indexdb"
	"sandcave.dev/internal/sim/batch"
	"sandcave.dev/internal/sim/cave"
)

func TestQueryRunsAndMilestones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.RecordRun(indexdb.RunInfo{ID: "a", InputDigest: "abc123", Source: cave.DefaultSource}, batch.Report{Part1: 24, Part2: 93, Blocked: true, Elapsed: time.Millisecond})
	idx.RecordRun(indexdb.RunInfo{ID: "b", InputDigest: "ffff00", Source: cave.DefaultSource}, batch.Report{Part1: 1})
	idx.RecordMilestone("a", batch.MilestoneOverflow, cave.State{Tick: 240, Grains: 25, Settled: 24, Grain: cave.Pos{X: 497, Y: 10}})
	idx.RecordMilestone("a", batch.MilestoneBlocked, cave.State{Tick: 900, Grains: 93, Settled: 93, Grain: cave.DefaultSource})
	idx.RecordMilestone("b", batch.MilestoneOverflow, cave.State{Tick: 3, Grains: 2, Settled: 1})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	runs, err := queryRuns(db, "abc", 10)
	if err != nil {
		t.Fatalf("queryRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "a" || runs[0].Part2 != 93 || !runs[0].Blocked || runs[0].Source != [2]int{500, 0} {
		t.Fatalf("runs mismatch: %+v", runs)
	}
	if all, err := queryRuns(db, "", 0); err != nil || len(all) != 2 {
		t.Fatalf("all runs: %d %v", len(all), err)
	}

	ms, err := queryMilestones(db, "a", batch.MilestoneOverflow, 0)
	if err != nil {
		t.Fatalf("queryMilestones: %v", err)
	}
	if len(ms) != 1 || ms[0].Settled != 24 || ms[0].Pos != [2]int{497, 10} {
		t.Fatalf("milestones mismatch: %+v", ms)
	}
	if all, err := queryMilestones(db, "", "", 0); err != nil || len(all) != 3 {
		t.Fatalf("all milestones: %d %v", len(all), err)
	}
}

func TestEndpoint(t *testing.T) {
	if got := endpoint("http://127.0.0.1:8080/", "/v1/state", nil); got != "http://127.0.0.1:8080/v1/state" {
		t.Fatalf("endpoint: %s", got)
	}
	q := map[string][]string{"ticks": {"5"}}
	if got := endpoint("http://h", "/v1/step", q); got != "http://h/v1/step?ticks=5" {
		t.Fatalf("endpoint: %s", got)
	}
}
