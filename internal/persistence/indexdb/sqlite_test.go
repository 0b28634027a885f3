package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"sandcave.dev/internal/sim/batch"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/tuning"
)

func TestSQLiteIndex_RecordRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	info := RunInfo{
		ID:          "run_1",
		InputDigest: InputDigest([]byte("498,4 -> 498,6 -> 496,6\n")),
		Source:      cave.DefaultSource,
		Extent:      cave.Extent{Min: cave.Pos{X: 494, Y: 0}, Max: cave.Pos{X: 503, Y: 9}},
	}
	rep := batch.Report{FirstOverflowGrain: 25, Part1: 24, Part1Ticks: 240, Part2: 93, Ticks: 1000, Blocked: true, Elapsed: 3 * time.Millisecond}
	idx.RecordRun(info, rep)
	idx.RecordMilestone("run_1", batch.MilestoneOverflow, cave.State{Tick: 240, Grains: 25, Settled: 24, Grain: cave.Pos{X: 497, Y: 10}})
	idx.RecordMilestone("run_1", batch.MilestoneBlocked, cave.State{Tick: 1000, Grains: 93, Settled: 93, Grain: cave.DefaultSource})
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		digest     string
		part1      int
		part2      int
		overflowAt int
		blocked    int
		maxY       int
	)
	row := db.QueryRow(`SELECT input_digest,part1,part2,first_overflow_grain,blocked,max_y FROM runs WHERE run_id='run_1'`)
	if err := row.Scan(&digest, &part1, &part2, &overflowAt, &blocked, &maxY); err != nil {
		t.Fatalf("Scan run: %v", err)
	}
	if digest != info.InputDigest || part1 != 24 || part2 != 93 || overflowAt != 25 || blocked != 1 || maxY != 9 {
		t.Fatalf("run mismatch: digest=%s part1=%d part2=%d overflow=%d blocked=%d maxY=%d", digest, part1, part2, overflowAt, blocked, maxY)
	}

	rows, err := db.Query(`SELECT kind,settled,x,y FROM milestones WHERE run_id='run_1' ORDER BY tick`)
	if err != nil {
		t.Fatalf("Query milestones: %v", err)
	}
	defer rows.Close()
	var kinds []string
	for rows.Next() {
		var (
			kind    string
			settled int
			x, y    int
		)
		if err := rows.Scan(&kind, &settled, &x, &y); err != nil {
			t.Fatalf("Scan milestone: %v", err)
		}
		kinds = append(kinds, kind)
		if kind == batch.MilestoneOverflow && (settled != 24 || x != 497 || y != 10) {
			t.Fatalf("overflow milestone mismatch: settled=%d pos=%d,%d", settled, x, y)
		}
	}
	if len(kinds) != 2 || kinds[0] != batch.MilestoneOverflow || kinds[1] != batch.MilestoneBlocked {
		t.Fatalf("milestones: %v", kinds)
	}

	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version); err != nil {
		t.Fatalf("Scan meta: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("schema_version=%q want %q", version, schemaVersion)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRun}

	s.RecordRun(RunInfo{ID: "r"}, batch.Report{})
	s.RecordMilestone("r", batch.MilestoneBlocked, cave.State{})
	s.RecordMilestone("", batch.MilestoneBlocked, cave.State{})

	st := s.Stats()
	if st.DropRunTotal != 1 {
		t.Fatalf("DropRunTotal=%d want=1", st.DropRunTotal)
	}
	if st.DropMilestoneTotal != 1 {
		t.Fatalf("DropMilestoneTotal=%d want=1", st.DropMilestoneTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.RecordRun(RunInfo{ID: "r"}, batch.Report{})
	s.RecordMilestone("r", batch.MilestoneBlocked, cave.State{})
	if err := s.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("UpsertTuning on nil: %v", err)
	}
	if st := s.Stats(); st != (Stats{}) {
		t.Fatalf("nil stats: %+v", st)
	}
}
