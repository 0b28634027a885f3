package term

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
)

func newViewer(t *testing.T, w, h int) (*Viewer, tcell.SimulationScreen, *session.Session) {
	t.Helper()
	paths := [][]cave.Pos{
		{{X: 498, Y: 4}, {X: 498, Y: 6}, {X: 496, Y: 6}},
		{{X: 503, Y: 4}, {X: 502, Y: 4}, {X: 502, Y: 9}, {X: 494, Y: 9}},
	}
	sess := session.New(paths, cave.Config{}, session.Options{})
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(w, h)
	return NewViewer(sess, screen, 0), screen, sess
}

func rowText(s tcell.Screen, y, w int) string {
	out := make([]rune, 0, w)
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		out = append(out, r)
	}
	return string(out)
}

func TestDrawSample(t *testing.T) {
	v, screen, _ := newViewer(t, 60, 12)
	v.Draw()

	assert.Contains(t, rowText(screen, 0, 60), "grains 1  settled 0  iterations 0  falling")
	assert.Equal(t, "......o...", rowText(screen, 1, 10))
	assert.Equal(t, "....#...##", rowText(screen, 5, 10))
	assert.Equal(t, "#########.", rowText(screen, 10, 10))

	_, _, style, _ := screen.GetContent(6, 1)
	assert.Equal(t, styleGrain, style)
}

func TestDrawClipsHeaderToScreen(t *testing.T) {
	v, screen, _ := newViewer(t, 12, 4)
	v.Draw()

	assert.Equal(t, "grains 1  se", rowText(screen, 0, 12))
}

func TestDrawFollowsGrainInSmallScreen(t *testing.T) {
	v, screen, sess := newViewer(t, 6, 4)
	sess.Step(cave.Limit{Ticks: 8})
	st := sess.State()
	require.Equal(t, cave.Pos{X: 500, Y: 8}, st.Grain)

	v.Draw()
	// Rows 7-9 and columns 497-502 are visible.
	assert.Equal(t, ".....#", rowText(screen, 1, 6))
	assert.Equal(t, "...o.#", rowText(screen, 2, 6))
	assert.Equal(t, "######", rowText(screen, 3, 6))
}

func TestKeys(t *testing.T) {
	v, _, sess := newViewer(t, 40, 12)

	v.key(tcell.KeyRune, 'n')
	assert.Equal(t, 10, sess.State().Grains)

	v.key(tcell.KeyRune, ' ')
	assert.True(t, v.Paused())
	v.key(tcell.KeyRune, ' ')
	assert.False(t, v.Paused())

	v.key(tcell.KeyRune, '+')
	assert.Equal(t, 100*time.Millisecond, v.Interval())
	for range 10 {
		v.key(tcell.KeyRune, '-')
	}
	assert.Equal(t, maxInterval, v.Interval())
	for range 20 {
		v.key(tcell.KeyRune, '+')
	}
	assert.Equal(t, minInterval, v.Interval())

	v.key(tcell.KeyRune, 'r')
	assert.Equal(t, 1, sess.State().Grains)

	v.key(tcell.KeyRune, 'x')
	assert.False(t, v.quit)
	v.key(tcell.KeyRune, 'q')
	assert.True(t, v.quit)
}

func TestNextKeyStopsInBottomlessCave(t *testing.T) {
	paths := [][]cave.Pos{{{X: 498, Y: 4}, {X: 502, Y: 4}}}
	sess := session.New(paths, cave.Config{Bottomless: true}, session.Options{})
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	t.Cleanup(screen.Fini)
	screen.SetSize(20, 8)
	v := NewViewer(sess, screen, 0)

	v.key(tcell.KeyRune, 'n')
	require.True(t, sess.Done())
	tick := sess.State().Tick

	for range 5 {
		v.key(tcell.KeyRune, 'n')
	}
	assert.Equal(t, tick, sess.State().Tick)
}

func TestViewport(t *testing.T) {
	assert.Equal(t, 0, viewport(5, 10, 20))
	assert.Equal(t, 0, viewport(1, 30, 10))
	assert.Equal(t, 10, viewport(15, 30, 10))
	assert.Equal(t, 20, viewport(29, 30, 10))
}
