// Package session shares one cave between concurrent drivers.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sandcave.dev/internal/sim/cave"
)

type Options struct {
	// StepGrains is the chunk size used by StepChunk. Defaults to 10.
	StepGrains int
	// StreamRows attaches the rendered picture to every published frame.
	StreamRows bool
	// OnEvent is called after the lock is released, once per event.
	OnEvent func(Event)
}

const (
	EventOverflow = "overflow"
	EventBlocked  = "blocked"
	EventReset    = "reset"
)

// Event reports a milestone reached by a step or a reset.
type Event struct {
	Kind  string
	State cave.State
}

// Frame is what subscribers receive after every step or reset. Frames reach
// each subscriber in the order the cave changed.
type Frame struct {
	State   cave.State
	Outcome cave.Outcome
	Rows    []string
	// Events lists the event kinds this change produced.
	Events []string
}

type Metrics struct {
	Steps       uint64
	Resets      uint64
	Subscribers int
	Dropped     uint64
	LastStepMS  float64
}

// Session owns a cave behind a single mutex. Every read and write of the cave
// holds the lock for its whole duration.
type Session struct {
	paths [][]cave.Pos
	cfg   cave.Config
	opts  Options

	mu   sync.Mutex
	cave *cave.Cave
	subs map[uint64]chan Frame

	nextSub  uint64
	steps    atomic.Uint64
	resets   atomic.Uint64
	dropped  atomic.Uint64
	lastStep atomic.Int64
}

// New builds a cave from paths. Reset rebuilds it from the same paths.
func New(paths [][]cave.Pos, cfg cave.Config, opts Options) *Session {
	if opts.StepGrains <= 0 {
		opts.StepGrains = 10
	}
	if cfg.Extent == (cave.Extent{}) {
		cfg.Extent = cave.ExtentOf(paths)
	}
	return &Session{
		paths: paths,
		cfg:   cfg,
		opts:  opts,
		cave:  cave.Build(paths, cfg),
		subs:  map[uint64]chan Frame{},
	}
}

func (s *Session) State() cave.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cave.State()
}

func (s *Session) Picture() cave.Picture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cave.Paint()
}

// View returns the state and picture under one lock acquisition.
func (s *Session) View() (cave.State, cave.Picture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cave.State(), s.cave.Paint()
}

// Done reports whether stepping can still change the cave.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cave.Done()
}

// Window is View plus the grid position of the picture's top-left cell.
func (s *Session) Window() (cave.State, cave.Picture, cave.Pos) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cave.State(), s.cave.Paint(), s.cave.Origin()
}

// Step advances the cave up to l and publishes a frame to subscribers.
func (s *Session) Step(l cave.Limit) Frame {
	start := time.Now()
	f, events := s.step(l)
	s.steps.Add(1)
	s.lastStep.Store(int64(time.Since(start)))
	s.emit(events)
	return f
}

// StepChunk advances until the grain counter reaches the next multiple of
// StepGrains.
func (s *Session) StepChunk() Frame {
	return s.Step(cave.Limit{Grains: s.opts.StepGrains})
}

func (s *Session) step(l cave.Limit) (Frame, []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasBlocked := s.cave.Blocked()
	out := s.cave.Advance(l)
	f := Frame{State: s.cave.State(), Outcome: out}
	if s.opts.StreamRows {
		f.Rows = s.cave.Paint().Lines()
	}

	var events []Event
	if out.Overflowed {
		events = append(events, Event{Kind: EventOverflow, State: f.State})
	}
	if !wasBlocked && s.cave.Blocked() {
		events = append(events, Event{Kind: EventBlocked, State: f.State})
	}
	for _, ev := range events {
		f.Events = append(f.Events, ev.Kind)
	}
	s.publishLocked(f)
	return f, events
}

// Reset rebuilds the cave from the rock paths it was created with.
func (s *Session) Reset() Frame {
	f := s.reset()
	s.resets.Add(1)
	s.emit([]Event{{Kind: EventReset, State: f.State}})
	return f
}

func (s *Session) reset() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cave = cave.Build(s.paths, s.cfg)
	f := Frame{State: s.cave.State(), Events: []string{EventReset}}
	if s.opts.StreamRows {
		f.Rows = s.cave.Paint().Lines()
	}
	s.publishLocked(f)
	return f
}

// Subscribe registers a frame channel with room for buf frames. Frames are
// dropped for subscribers that fall behind. The returned func unsubscribes
// and closes the channel.
func (s *Session) Subscribe(buf int) (<-chan Frame, func()) {
	if buf <= 0 {
		buf = 1
	}
	ch := make(chan Frame, buf)
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// publishLocked sends f to every subscriber without blocking. The caller
// holds mu, so frames keep the order of the changes they describe.
func (s *Session) publishLocked(f Frame) {
	for _, ch := range s.subs {
		select {
		case ch <- f:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Session) emit(events []Event) {
	if s.opts.OnEvent == nil {
		return
	}
	for _, ev := range events {
		s.opts.OnEvent(ev)
	}
}

// Run steps one chunk per interval until ctx is done or the cave blocks. A
// bottomless cave stops at its overflow.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.StepChunk()
			if s.Done() {
				return nil
			}
		}
	}
}

func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	subs := len(s.subs)
	s.mu.Unlock()
	return Metrics{
		Steps:       s.steps.Load(),
		Resets:      s.resets.Load(),
		Subscribers: subs,
		Dropped:     s.dropped.Load(),
		LastStepMS:  float64(s.lastStep.Load()) / float64(time.Millisecond),
	}
}

func (s *Session) Options() Options { return s.opts }
