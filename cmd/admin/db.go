package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"sandcave.dev/internal/persistence/indexdb"
)

// openDB adds -data and -db to fs, parses args and opens the index.
func openDB(fs *flag.FlagSet, args []string) *sql.DB {
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/runs.sqlite)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexdb.DefaultPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return db
}

type runRow struct {
	RunID              string  `json:"run_id"`
	InputDigest        string  `json:"input_digest"`
	Source             [2]int  `json:"source"`
	Min                [2]int  `json:"min"`
	Max                [2]int  `json:"max"`
	Bottomless         bool    `json:"bottomless"`
	FirstOverflowGrain int     `json:"first_overflow_grain"`
	Part1              int     `json:"part1"`
	Part1Ticks         int     `json:"part1_ticks"`
	Part2              int     `json:"part2"`
	Ticks              int     `json:"ticks"`
	Blocked            bool    `json:"blocked"`
	ElapsedMS          float64 `json:"elapsed_ms"`
	RecordedAt         string  `json:"recorded_at"`
}

func queryRuns(db *sql.DB, digest string, limit int) ([]runRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT run_id,input_digest,source_x,source_y,min_x,min_y,max_x,max_y,bottomless,first_overflow_grain,part1,part1_ticks,part2,ticks,blocked,elapsed_ms,recorded_at FROM runs`
	args := []any{}
	if digest != "" {
		q += ` WHERE input_digest LIKE ?`
		args = append(args, digest+"%")
	}
	q += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []runRow
	for rows.Next() {
		var r runRow
		if err := rows.Scan(
			&r.RunID, &r.InputDigest,
			&r.Source[0], &r.Source[1],
			&r.Min[0], &r.Min[1], &r.Max[0], &r.Max[1],
			&r.Bottomless,
			&r.FirstOverflowGrain, &r.Part1, &r.Part1Ticks, &r.Part2, &r.Ticks,
			&r.Blocked, &r.ElapsedMS, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type milestoneRow struct {
	RunID      string `json:"run_id"`
	Kind       string `json:"kind"`
	Grain      int    `json:"grain"`
	Settled    int    `json:"settled"`
	Tick       int    `json:"tick"`
	Pos        [2]int `json:"pos"`
	RecordedAt string `json:"recorded_at"`
}

func queryMilestones(db *sql.DB, run, kind string, limit int) ([]milestoneRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT run_id,kind,grain,settled,tick,x,y,recorded_at FROM milestones WHERE 1=1`
	args := []any{}
	if run != "" {
		q += ` AND run_id=?`
		args = append(args, run)
	}
	if kind != "" {
		q += ` AND kind=?`
		args = append(args, kind)
	}
	q += ` ORDER BY recorded_at DESC, tick DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []milestoneRow
	for rows.Next() {
		var r milestoneRow
		if err := rows.Scan(&r.RunID, &r.Kind, &r.Grain, &r.Settled, &r.Tick, &r.Pos[0], &r.Pos[1], &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	digest := fs.String("digest", "", "input digest prefix filter")
	limit := fs.Int("limit", 20, "result limit")
	db := openDB(fs, args)
	defer db.Close()

	rows, err := queryRuns(db, strings.TrimSpace(*digest), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func milestonesCmd(args []string) {
	fs := flag.NewFlagSet("milestones", flag.ExitOnError)
	run := fs.String("run", "", "run id filter")
	kind := fs.String("kind", "", "kind filter (overflow, blocked, reset)")
	limit := fs.Int("limit", 50, "result limit")
	db := openDB(fs, args)
	defer db.Close()

	rows, err := queryMilestones(db, strings.TrimSpace(*run), strings.TrimSpace(*kind), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
