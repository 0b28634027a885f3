package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"sandcave.dev/internal/persistence/indexdb"
	persistlog "sandcave.dev/internal/persistence/log"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
	"sandcave.dev/internal/sim/tuning"
	"sandcave.dev/internal/transport/observer"
	"sandcave.dev/internal/transport/web"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		inputPath  = flag.String("input", "input.txt", "rock scan, one path per line")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to cave.yaml (default: <configs>/cave.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the run index")
		autoplay   = flag.Duration("autoplay", -1, "step one chunk per interval (0 disables; default from cave.yaml)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "cave.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
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
	runID := fmt.Sprintf("server_%d", time.Now().Unix())

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		}
	}

	progress := persistlog.NewProgressLogger(*dataDir, runID)
	defer progress.Close()

	sess := session.New(paths, cfg, session.Options{
		StepGrains: tune.StepGrains,
		StreamRows: tune.StreamRows,
		OnEvent: func(ev session.Event) {
			logger.Printf("%s: grain %d at iteration %d (%d settled)", ev.Kind, ev.State.Grains, ev.State.Tick, ev.State.Settled)
			if idx != nil {
				idx.RecordMilestone(runID, ev.Kind, ev.State)
			}
		},
	})
	logger.Printf("run=%s input=%s digest=%.12s extent=%v..%v source=%v bottomless=%v",
		runID, *inputPath, indexdb.InputDigest(raw), cfg.Extent.Min, cfg.Extent.Max, tune.SourcePos(), cfg.Bottomless)

	ctx, cancel := signalContext()
	defer cancel()

	frames, unsubscribe := sess.Subscribe(1024)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		logProgress(frames, progress, tune.ProgressEveryTicks, logger)
	}()
	defer func() {
		unsubscribe()
		<-logged
	}()

	interval := tune.AutoplayInterval()
	if *autoplay >= 0 {
		interval = *autoplay
	}
	if interval > 0 {
		go func() {
			if err := sess.Run(ctx, interval); err != nil && err != context.Canceled {
				logger.Printf("autoplay stopped: %v", err)
			}
		}()
		logger.Printf("autoplay every %s", interval)
	}

	obsSrv := observer.NewServer(sess, logger)
	obsSrv.AllowRemote = envBool("SC_ALLOW_REMOTE_WS", false)

	enablePprofHTTP := envBool("SC_ENABLE_PPROF_HTTP", false)
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (SC_ENABLE_PPROF_HTTP=false)")
	}
	webSrv, err := web.NewServer(sess, web.Options{
		Logger:      logger,
		EnablePprof: enablePprofHTTP,
		MetricsWriters: []func(io.Writer){
			func(w io.Writer) { writeObserverMetrics(w, obsSrv) },
			func(w io.Writer) { writeIndexMetrics(w, idx) },
		},
	})
	if err != nil {
		logger.Fatalf("web: %v", err)
	}
	webSrv.Mount("/v1/ws", obsSrv.WSHandler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           webSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// logProgress writes the session's frames to the progress log until frames
// is closed: every event a frame carries, plus a progress entry whenever the
// tick counter crosses a multiple of every.
func logProgress(frames <-chan session.Frame, progress *persistlog.ProgressLogger, every int, logger *log.Logger) {
	if every <= 0 {
		every = 1
	}
	last := 0
	for f := range frames {
		for _, kind := range f.Events {
			if err := progress.Write(kind, f.State); err != nil {
				logger.Printf("progress log: %v", err)
			}
			if kind == session.EventReset {
				last = f.State.Tick
			}
		}
		if f.State.Tick/every == last/every {
			last = f.State.Tick
			continue
		}
		last = f.State.Tick
		logger.Printf("grain %d at iteration %d", f.State.Grains, f.State.Tick)
		if err := progress.Write(persistlog.EventProgress, f.State); err != nil {
			logger.Printf("progress log: %v", err)
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func writeObserverMetrics(w io.Writer, obs *observer.Server) {
	fmt.Fprintf(w, "# HELP sandcave_observers Connected websocket observers.\n")
	fmt.Fprintf(w, "# TYPE sandcave_observers gauge\n")
	fmt.Fprintf(w, "sandcave_observers %d\n", obs.Active())
}

func writeIndexMetrics(w io.Writer, idx runtimeIndex) {
	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(w, "# HELP sandcave_index_queue_depth Run index writer backlog.\n")
	fmt.Fprintf(w, "# TYPE sandcave_index_queue_depth gauge\n")
	fmt.Fprintf(w, "sandcave_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(w, "# HELP sandcave_index_dropped_total Index rows dropped because the writer fell behind.\n")
	fmt.Fprintf(w, "# TYPE sandcave_index_dropped_total counter\n")
	fmt.Fprintf(w, "sandcave_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
	fmt.Fprintf(w, "sandcave_index_dropped_total{kind=%q} %d\n", "milestone", s.DropMilestoneTotal)
}
