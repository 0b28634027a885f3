package cave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePicture = `......o...
..........
..........
..........
....#...##
....#...#.
..###...#.
........#.
........#.
#########.
`

func TestPaintSample(t *testing.T) {
	c := sampleCave(t, Config{})
	pic := c.Paint()

	require.Equal(t, 10, pic.Height())
	assert.Equal(t, 10, pic.Width())
	assert.Equal(t, "#", pic[4][4])
	assert.Equal(t, ".", pic[4][5])
	assert.Equal(t, samplePicture, pic.String())
}

func TestPaintIsIdempotent(t *testing.T) {
	c := sampleCave(t, Config{})
	c.Advance(Limit{Ticks: 100})
	assert.Equal(t, c.Paint(), c.Paint())
}

func TestPaintGrowsWithSand(t *testing.T) {
	c := sampleCave(t, Config{})
	c.Advance(Limit{})

	pic := c.Paint()
	// The floor two rows below the rocks is never painted, the sand on it is.
	assert.Equal(t, 11, pic.Height())
	assert.Greater(t, pic.Width(), 10)
	assert.Contains(t, pic.Lines()[0], "o")
}

func TestPaintEmptyGrid(t *testing.T) {
	c := New(Config{})
	c.Grid().Set(c.Source(), Empty)
	pic := c.Paint()
	assert.Equal(t, 1, pic.Height())
	assert.Equal(t, ".", pic[0][0])
}

func TestOriginTracksLeftmostCell(t *testing.T) {
	c := sampleCave(t, Config{})
	assert.Equal(t, Pos{X: 494}, c.Origin())

	c.Advance(Limit{})
	origin := c.Origin()
	assert.Less(t, origin.X, 494)
	assert.Equal(t, "o", c.Paint()[0][DefaultSource.X-origin.X])
}
