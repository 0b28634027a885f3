package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"sandcave.dev/internal/sim/batch"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/tuning"
)

const schemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun       atomic.Uint64
	dropMilestone atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqMilestone
)

type req struct {
	kind reqKind

	run       runRow
	milestone milestoneRow
}

// RunInfo identifies a run and the cave it ran on.
type RunInfo struct {
	ID          string
	InputDigest string
	Source      cave.Pos
	Extent      cave.Extent
	Bottomless  bool
}

type runRow struct {
	Info       RunInfo
	Report     batch.Report
	RecordedAt string
}

type milestoneRow struct {
	Run        string
	Kind       string
	Grain      int
	Settled    int
	Tick       int
	Pos        cave.Pos
	RecordedAt string
}

// Stats reports writer queue health.
type Stats struct {
	QueueDepth         int    `json:"queue_depth"`
	QueueCapacity      int    `json:"queue_capacity"`
	DropRunTotal       uint64 `json:"drop_run_total"`
	DropMilestoneTotal uint64 `json:"drop_milestone_total"`
}

// InputDigest is the hex sha256 of a rock scan.
func InputDigest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DefaultPath is where the index lives under a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "runs.sqlite")
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; the index is secondary to the progress log.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			input_digest TEXT NOT NULL,
			source_x INTEGER NOT NULL,
			source_y INTEGER NOT NULL,
			min_x INTEGER NOT NULL,
			min_y INTEGER NOT NULL,
			max_x INTEGER NOT NULL,
			max_y INTEGER NOT NULL,
			bottomless INTEGER NOT NULL,
			first_overflow_grain INTEGER NOT NULL,
			part1 INTEGER NOT NULL,
			part1_ticks INTEGER NOT NULL,
			part2 INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			blocked INTEGER NOT NULL,
			elapsed_ms REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(input_digest);`,
		`CREATE TABLE IF NOT EXISTS milestones (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			grain INTEGER NOT NULL,
			settled INTEGER NOT NULL,
			tick INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, kind, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun queues a finished run. Rows are dropped if the writer falls
// behind.
func (s *SQLiteIndex) RecordRun(info RunInfo, rep batch.Report) {
	if s == nil || s.closed.Load() || info.ID == "" {
		return
	}
	r := runRow{Info: info, Report: rep, RecordedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

// RecordMilestone queues a milestone (overflow, blocked, reset) for a run.
func (s *SQLiteIndex) RecordMilestone(run, kind string, st cave.State) {
	if s == nil || s.closed.Load() || run == "" || kind == "" {
		return
	}
	m := milestoneRow{
		Run:        run,
		Kind:       kind,
		Grain:      st.Grains,
		Settled:    st.Settled,
		Tick:       st.Tick,
		Pos:        st.Grain,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqMilestone, milestone: m}:
	default:
		s.dropMilestone.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(s.ch),
		QueueCapacity:      cap(s.ch),
		DropRunTotal:       s.dropRun.Load(),
		DropMilestoneTotal: s.dropMilestone.Load(),
	}
}

// UpsertTuning stores the applied tuning in meta, keyed by its digest.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, kv := range [][2]string{
		{"schema_version", schemaVersion},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
	} {
		if _, err := stmt.Exec(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,input_digest,source_x,source_y,min_x,min_y,max_x,max_y,bottomless,first_overflow_grain,part1,part1_ticks,part2,ticks,blocked,elapsed_ms,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertMilestone, _ := s.db.Prepare(`INSERT OR REPLACE INTO milestones(run_id,kind,grain,settled,tick,x,y,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertMilestone != nil {
			_ = insertMilestone.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Flush when idle so milestones show up promptly.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			in, rep := r.run.Info, r.run.Report
			if insertRun != nil {
				if _, err := tx.Stmt(insertRun).Exec(
					in.ID,
					in.InputDigest,
					in.Source.X, in.Source.Y,
					in.Extent.Min.X, in.Extent.Min.Y,
					in.Extent.Max.X, in.Extent.Max.Y,
					boolInt(in.Bottomless),
					rep.FirstOverflowGrain,
					rep.Part1,
					rep.Part1Ticks,
					rep.Part2,
					rep.Ticks,
					boolInt(rep.Blocked),
					float64(rep.Elapsed.Microseconds())/1000,
					r.run.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqMilestone:
			m := r.milestone
			if insertMilestone != nil {
				if _, err := tx.Stmt(insertMilestone).Exec(
					m.Run,
					m.Kind,
					m.Grain,
					m.Settled,
					m.Tick,
					m.Pos.X, m.Pos.Y,
					m.RecordedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
