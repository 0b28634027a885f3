package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
	"sandcave.dev/internal/sim/tuning"
	"sandcave.dev/internal/transport/term"
)

func main() {
	var (
		inputPath  = flag.String("input", "input.txt", "rock scan, one path per line")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to cave.yaml (default: <configs>/cave.yaml)")
		interval   = flag.Duration("interval", 200*time.Millisecond, "time between chunks")
		bottomless = flag.Bool("bottomless", false, "remove the floor below the rocks")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "cave.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *bottomless {
		tune.Bottomless = true
	}

	paths, err := cave.LoadPaths(*inputPath, tune.ParseOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, "load input:", err)
		os.Exit(1)
	}
	sess := session.New(paths, tune.CaveConfig(cave.ExtentOf(paths)), session.Options{StepGrains: tune.StepGrains})

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "screen:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "screen init:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := term.NewViewer(sess, screen, *interval)
	runErr := v.Run(ctx)
	screen.Fini()

	st := sess.State()
	fmt.Printf("grains=%d settled=%d iterations=%d status=%s\n", st.Grains, st.Settled, st.Tick, st.Status)
	if o := st.Overflow; o != nil {
		fmt.Printf("first overflow: grain %d with %d settled\n", o.Grain, o.Settled)
	}
	if runErr != nil && runErr != context.Canceled {
		fmt.Fprintln(os.Stderr, "viewer:", runErr)
		os.Exit(1)
	}
}
