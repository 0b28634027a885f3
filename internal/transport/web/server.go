// Package web serves the cave as HTML pages and a small JSON API.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"

	"sandcave.dev/internal/protocol"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Options struct {
	Logger      *log.Logger
	EnablePprof bool
	// MetricsWriters append extra series to /metrics.
	MetricsWriters []func(io.Writer)
}

type Server struct {
	sess *session.Session
	log  *log.Logger
	opts Options
	tmpl *template.Template
	mux  *http.ServeMux
}

// page is the template data for index.html and the cave fragment.
type page struct {
	Grains   int
	Settled  int
	Tick     int
	Status   string
	Overflow *cave.Milestone
	Rows     []string
}

func NewServer(sess *session.Session, opts Options) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{sess: sess, log: opts.Logger, opts: opts, tmpl: tmpl, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.mux }

// Mount adds a route next to the built-in ones, e.g. the websocket observer.
func (s *Server) Mount(pattern string, h http.Handler) { s.mux.Handle(pattern, h) }

func (s *Server) routes() {
	mux := s.mux
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/cave", s.handleCave)
	mux.HandleFunc("/update-cave", s.handleUpdateCave)
	mux.HandleFunc("/v1/state", s.handleState)
	mux.HandleFunc("/v1/step", s.handleStep)
	mux.HandleFunc("/v1/reset", s.handleReset)

	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", s.handleMetrics)

	if s.opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
}

func newPage(st cave.State, pic cave.Picture) page {
	return page{
		Grains:   st.Grains,
		Settled:  st.Settled,
		Tick:     st.Tick,
		Status:   st.Status.String(),
		Overflow: st.Overflow,
		Rows:     pic.Lines(),
	}
}

func (s *Server) render(rw http.ResponseWriter, name string, st cave.State, pic cave.Picture) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(rw, name, newPage(st, pic)); err != nil && s.log != nil {
		s.log.Printf("render %s: %v", name, err)
	}
}

func (s *Server) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	st, pic := s.sess.View()
	s.render(rw, "index.html", st, pic)
}

func (s *Server) handleCave(rw http.ResponseWriter, r *http.Request) {
	st, pic := s.sess.View()
	s.render(rw, "cave", st, pic)
}

func (s *Server) handleUpdateCave(rw http.ResponseWriter, r *http.Request) {
	if !s.sess.Done() {
		s.sess.StepChunk()
	}
	st, pic := s.sess.View()
	s.render(rw, "cave", st, pic)
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st, pic := s.sess.View()
	m := protocol.NewState(st)
	if wantRows(r) {
		m.Rows = pic.Lines()
	}
	writeJSON(rw, http.StatusOK, m)
}

func (s *Server) handleStep(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	step, err := parseStep(r)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.NewError(protocol.ErrBadRequest, err.Error()))
		return
	}
	if s.sess.Done() {
		writeJSON(rw, http.StatusConflict, protocol.NewDoneError(s.sess.State()))
		return
	}
	var f session.Frame
	if l, ok := step.Limit(); ok {
		f = s.sess.Step(l)
	} else {
		f = s.sess.StepChunk()
	}
	writeJSON(rw, http.StatusOK, s.frameMsg(r, f))
}

func (s *Server) handleReset(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f := s.sess.Reset()
	if s.log != nil {
		s.log.Printf("cave reset")
	}
	writeJSON(rw, http.StatusOK, s.frameMsg(r, f))
}

func (s *Server) frameMsg(r *http.Request, f session.Frame) protocol.StateMsg {
	m := protocol.NewFrame(f)
	switch {
	case !wantRows(r):
		m.Rows = nil
	case m.Rows == nil:
		m.Rows = s.sess.Picture().Lines()
	}
	return m
}

// parseStep reads ticks, grains or until from the query. At most one may be
// set; none means one chunk.
func parseStep(r *http.Request) (protocol.StepMsg, error) {
	q := r.URL.Query()
	m := protocol.StepMsg{Type: protocol.TypeStep, ProtocolVersion: protocol.Version}
	set := 0
	for _, k := range []string{"ticks", "grains"} {
		v := q.Get(k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return m, fmt.Errorf("%s must be a positive integer", k)
		}
		if k == "ticks" {
			m.Ticks = n
		} else {
			m.Grains = n
		}
		set++
	}
	if v := q.Get("until"); v != "" {
		if v != protocol.UntilOverflow && v != protocol.UntilBlocked {
			return m, fmt.Errorf("until must be %q or %q", protocol.UntilOverflow, protocol.UntilBlocked)
		}
		m.Until = v
		set++
	}
	if set > 1 {
		return m, fmt.Errorf("use only one of ticks, grains, until")
	}
	return m, nil
}

func wantRows(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("rows"))
	return v
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) handleMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	st := s.sess.State()
	m := s.sess.Metrics()
	blocked := 0
	if st.Status == cave.Blocked {
		blocked = 1
	}

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP sandcave_tick Successful ticks since the cave was built.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_tick gauge\n")
	fmt.Fprintf(rw, "sandcave_tick %d\n", st.Tick)

	fmt.Fprintf(rw, "# HELP sandcave_grains Grains spawned including the falling one.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_grains gauge\n")
	fmt.Fprintf(rw, "sandcave_grains %d\n", st.Grains)

	fmt.Fprintf(rw, "# HELP sandcave_settled Grains at rest.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_settled gauge\n")
	fmt.Fprintf(rw, "sandcave_settled %d\n", st.Settled)

	fmt.Fprintf(rw, "# HELP sandcave_blocked 1 once the source is blocked.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_blocked gauge\n")
	fmt.Fprintf(rw, "sandcave_blocked %d\n", blocked)

	fmt.Fprintf(rw, "# HELP sandcave_cells Occupied cells in the grid.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_cells gauge\n")
	fmt.Fprintf(rw, "sandcave_cells %d\n", st.Cells)

	fmt.Fprintf(rw, "# HELP sandcave_steps_total Session steps.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_steps_total counter\n")
	fmt.Fprintf(rw, "sandcave_steps_total %d\n", m.Steps)

	fmt.Fprintf(rw, "# HELP sandcave_resets_total Session resets.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_resets_total counter\n")
	fmt.Fprintf(rw, "sandcave_resets_total %d\n", m.Resets)

	fmt.Fprintf(rw, "# HELP sandcave_subscribers Current frame subscribers.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_subscribers gauge\n")
	fmt.Fprintf(rw, "sandcave_subscribers %d\n", m.Subscribers)

	fmt.Fprintf(rw, "# HELP sandcave_frames_dropped_total Frames dropped for slow subscribers.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_frames_dropped_total counter\n")
	fmt.Fprintf(rw, "sandcave_frames_dropped_total %d\n", m.Dropped)

	fmt.Fprintf(rw, "# HELP sandcave_step_ms Last step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE sandcave_step_ms gauge\n")
	fmt.Fprintf(rw, "sandcave_step_ms %.3f\n", m.LastStepMS)

	for _, w := range s.opts.MetricsWriters {
		w(rw)
	}
}
