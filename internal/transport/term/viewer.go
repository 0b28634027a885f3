// Package term draws a session into a terminal screen.
package term

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
)

const (
	minInterval = 10 * time.Millisecond
	maxInterval = 2 * time.Second
)

var (
	styleHeader = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleRock   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleSand   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleGrain  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleAir    = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
)

// Viewer renders the cave below a one-line status header and keeps the
// falling grain inside the viewport.
type Viewer struct {
	sess   *session.Session
	screen tcell.Screen

	interval time.Duration
	paused   bool
	quit     bool
}

func NewViewer(sess *session.Session, screen tcell.Screen, interval time.Duration) *Viewer {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Viewer{sess: sess, screen: screen, interval: interval}
}

func (v *Viewer) Interval() time.Duration { return v.interval }
func (v *Viewer) Paused() bool            { return v.paused }

// Run polls keys and steps one chunk per interval until q is pressed or ctx
// is done. The screen is not finalized.
func (v *Viewer) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	t := time.NewTimer(v.interval)
	defer t.Stop()
	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			v.Handle(ev)
			if v.quit {
				return nil
			}
			v.Draw()
		case <-t.C:
			if !v.paused && !v.sess.Done() {
				v.sess.StepChunk()
				v.Draw()
			}
			t.Reset(v.interval)
		}
	}
}

// Handle applies one terminal event.
func (v *Viewer) Handle(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		v.key(ev.Key(), ev.Rune())
	case *tcell.EventResize:
		v.screen.Sync()
	}
}

func (v *Viewer) key(k tcell.Key, r rune) {
	switch k {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		v.quit = true
		return
	case tcell.KeyRune:
	default:
		return
	}
	switch r {
	case 'q':
		v.quit = true
	case ' ':
		v.paused = !v.paused
	case 'n':
		if !v.sess.Done() {
			v.sess.StepChunk()
		}
	case '+':
		v.interval = max(v.interval/2, minInterval)
	case '-':
		v.interval = min(v.interval*2, maxInterval)
	case 'r':
		v.sess.Reset()
	}
}

// Draw paints the header and the visible part of the cave.
func (v *Viewer) Draw() {
	st, pic, origin := v.sess.Window()
	w, h := v.screen.Size()
	v.screen.Clear()

	status := st.Status.String()
	if v.paused {
		status += " (paused)"
	}
	header := fmt.Sprintf("grains %d  settled %d  iterations %d  %s", st.Grains, st.Settled, st.Tick, status)
	if o := st.Overflow; o != nil {
		header += fmt.Sprintf("  overflow@%d", o.Grain)
	}
	drawText(v.screen, 0, 0, w, header, styleHeader)

	rows := h - 1
	if rows <= 0 {
		v.screen.Show()
		return
	}
	gx, gy := st.Grain.X-origin.X, st.Grain.Y
	offX := viewport(gx, pic.Width(), w)
	offY := viewport(gy, pic.Height(), rows)
	for y := 0; y < rows && offY+y < pic.Height(); y++ {
		row := pic[offY+y]
		for x := 0; x < w && offX+x < len(row); x++ {
			px, py := offX+x, offY+y
			style := styleFor(row[px])
			if st.Status == cave.Falling && px == gx && py == gy {
				style = styleGrain
			}
			v.screen.SetContent(x, y+1, []rune(row[px])[0], nil, style)
		}
	}
	v.screen.Show()
}

// viewport returns the first visible index so that focus stays centered
// when size exceeds span.
func viewport(focus, size, span int) int {
	if size <= span {
		return 0
	}
	off := focus - span/2
	return max(0, min(off, size-span))
}

func styleFor(sym string) tcell.Style {
	switch sym {
	case cave.Rock.Symbol():
		return styleRock
	case cave.Sand.Symbol():
		return styleSand
	}
	return styleAir
}

func drawText(s tcell.Screen, x, y, w int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		if x+i >= w {
			return
		}
		s.SetContent(x+i, y, r, nil, style)
	}
}
