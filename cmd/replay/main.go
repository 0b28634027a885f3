package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "sandcave.dev/internal/persistence/log"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/tuning"
)

func main() {
	var (
		logPath    = flag.String("log", "", "progress log: a .jsonl.zst file or a directory of them")
		runID      = flag.String("run", "", "only entries of this run (optional)")
		inputPath  = flag.String("input", "", "rock scan to verify entries against (optional)")
		tuningPath = flag.String("tuning", "./configs/cave.yaml", "path to cave.yaml used with -input")
		quiet      = flag.Bool("quiet", false, "print only the summary")
	)
	flag.Parse()

	if *logPath == "" {
		fmt.Fprintln(os.Stderr, "missing -log")
		os.Exit(2)
	}

	files, err := logFiles(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no progress files found in", *logPath)
		os.Exit(1)
	}

	var v *verifier
	if *inputPath != "" {
		v, err = newVerifier(*inputPath, *tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verify:", err)
			os.Exit(1)
		}
	}

	var sum summary
	for _, path := range files {
		entries, err := persistlog.ReadEntries(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		for _, e := range entries {
			if *runID != "" && e.Run != *runID {
				continue
			}
			if !*quiet {
				fmt.Printf("%s run=%s %-8s tick=%d grains=%d settled=%d grain=%s status=%s\n",
					e.Time.Format("2006-01-02T15:04:05Z"), e.Run, e.Event, e.Tick, e.Grains, e.Settled, e.Grain, e.Status)
			}
			if v != nil {
				if err := v.check(e); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
					os.Exit(1)
				}
			}
			sum.add(e)
		}
	}
	sum.print(os.Stdout)
	if v != nil {
		fmt.Printf("replay ok: verified=%d entries against %s\n", v.checked, *inputPath)
	}
}

func logFiles(path string) ([]string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return []string{path}, nil
	}
	files, err := persistlog.ListFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		// Accept the data dir as well as its progress subdir.
		return persistlog.ListFiles(filepath.Join(path, "progress"))
	}
	return files, nil
}

type summary struct {
	entries   int
	runs      []string
	lastTick  int
	overflows []persistlog.Entry
	blocked   []persistlog.Entry
}

func (s *summary) add(e persistlog.Entry) {
	s.entries++
	if len(s.runs) == 0 || s.runs[len(s.runs)-1] != e.Run {
		s.runs = append(s.runs, e.Run)
	}
	s.lastTick = e.Tick
	switch e.Event {
	case persistlog.EventOverflow:
		s.overflows = append(s.overflows, e)
	case persistlog.EventBlocked:
		s.blocked = append(s.blocked, e)
	}
}

func (s *summary) print(w *os.File) {
	fmt.Fprintf(w, "entries=%d runs=%s last_tick=%d\n", s.entries, strings.Join(s.runs, ","), s.lastTick)
	for _, e := range s.overflows {
		fmt.Fprintf(w, "overflow run=%s grain=%d settled=%d tick=%d\n", e.Run, e.Grains, e.Settled, e.Tick)
	}
	for _, e := range s.blocked {
		fmt.Fprintf(w, "blocked run=%s settled=%d tick=%d\n", e.Run, e.Settled, e.Tick)
	}
}

// verifier re-runs the cave from the rock scan and checks that every entry
// matches the simulation at the same tick.
type verifier struct {
	paths   [][]cave.Pos
	cfg     cave.Config
	c       *cave.Cave
	run     string
	checked int
}

func newVerifier(inputPath, tuningPath string) (*verifier, error) {
	tune, err := tuning.Load(tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		tune = tuning.Defaults()
	}
	paths, err := cave.LoadPaths(inputPath, tune.ParseOptions())
	if err != nil {
		return nil, err
	}
	cfg := tune.CaveConfig(cave.ExtentOf(paths))
	return &verifier{paths: paths, cfg: cfg, c: cave.Build(paths, cfg)}, nil
}

func (v *verifier) check(e persistlog.Entry) error {
	if e.Run != v.run || e.Event == persistlog.EventReset || e.Event == persistlog.EventStart {
		v.run = e.Run
		v.c = cave.Build(v.paths, v.cfg)
	}
	if e.Tick < v.c.Ticks() {
		return fmt.Errorf("tick went backwards: entry=%d cave=%d", e.Tick, v.c.Ticks())
	}
	if n := e.Tick - v.c.Ticks(); n > 0 {
		v.c.Advance(cave.Limit{Ticks: n})
	}
	st := v.c.State()
	if st.Tick != e.Tick || st.Grains != e.Grains || st.Settled != e.Settled || st.Grain != e.Grain {
		return fmt.Errorf("mismatch at tick %d (%s): log grains=%d settled=%d grain=%s, sim grains=%d settled=%d grain=%s",
			e.Tick, e.Event, e.Grains, e.Settled, e.Grain, st.Grains, st.Settled, st.Grain)
	}
	v.checked++
	return nil
}
