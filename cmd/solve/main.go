package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"sandcave.dev/internal/persistence/indexdb"
	persistlog "sandcave.dev/internal/persistence/log"
	"sandcave.dev/internal/sim/batch"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/tuning"
)

func main() {
	var (
		inputPath  = flag.String("input", "input.txt", "rock scan, one path per line")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to cave.yaml (default: <configs>/cave.yaml)")
		dataDir    = flag.String("data", "", "runtime data directory for the progress log and run index (empty disables both)")
		printPic   = flag.Bool("print", false, "print the final cave")
		asJSON     = flag.Bool("json", false, "print the report as JSON")
		runID      = flag.String("run", "", "run id (default: solve_<unix time>)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[solve] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "cave.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = tuning.Defaults()
	}

	raw, err := os.ReadFile(*inputPath)
	if err != nil {
		logger.Fatalf("read input: %v", err)
	}
	paths, err := cave.ReadPaths(bytes.NewReader(raw), tune.ParseOptions())
	if err != nil {
		logger.Fatalf("parse input: %v", err)
	}
	cfg := tune.CaveConfig(cave.ExtentOf(paths))
	c := cave.Build(paths, cfg)

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = fmt.Sprintf("solve_%d", time.Now().Unix())
	}

	var (
		progress *persistlog.ProgressLogger
		idx      *indexdb.SQLiteIndex
	)
	if *dataDir != "" {
		progress = persistlog.NewProgressLogger(*dataDir, id)
		defer progress.Close()
		idx, err = indexdb.OpenSQLite(indexdb.DefaultPath(*dataDir))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}
	record := func(event string, st cave.State) {
		if progress == nil {
			return
		}
		if err := progress.Write(event, st); err != nil {
			logger.Printf("progress log: %v", err)
		}
	}
	record(persistlog.EventStart, c.State())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := batch.Solve(ctx, c, batch.Options{
		ProgressEvery: tune.ProgressEveryTicks,
		OnProgress: func(st cave.State) {
			logger.Printf("grain %d at iteration %d", st.Grains, st.Tick)
			record(persistlog.EventProgress, st)
		},
		OnMilestone: func(kind string, st cave.State) {
			logger.Printf("%s: grain %d at iteration %d (%d settled)", kind, st.Grains, st.Tick, st.Settled)
			record(kind, st)
			idx.RecordMilestone(id, kind, st)
		},
	})
	if err != nil {
		logger.Fatalf("solve: %v", err)
	}
	record(persistlog.EventDone, c.State())
	idx.RecordRun(indexdb.RunInfo{
		ID:          id,
		InputDigest: indexdb.InputDigest(raw),
		Source:      c.Source(),
		Extent:      c.Extent(),
		Bottomless:  cfg.Bottomless,
	}, rep)

	if *printPic {
		fmt.Print(c.Paint().String())
	}
	if *asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(rep)
		return
	}
	fmt.Printf("part 1: %d grains at rest before the first falls into the abyss (grain %d, iteration %d)\n", rep.Part1, rep.FirstOverflowGrain, rep.Part1Ticks)
	if rep.Blocked {
		fmt.Printf("part 2: %d grains at rest when the source is blocked (iteration %d)\n", rep.Part2, rep.Ticks)
	}
	fmt.Printf("elapsed: %s\n", rep.Elapsed)
}
