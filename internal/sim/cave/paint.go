package cave

import "strings"

// Picture is a rectangular character rendering of a cave, one row per y.
type Picture [][]string

// Paint renders rows 0 through the lowest populated row and columns from the
// leftmost to the rightmost populated cell. Bounds come from the live grid,
// so the picture grows as sand spreads.
func (c *Cave) Paint() Picture {
	lo, hi, ok := c.grid.Bounds()
	if !ok {
		lo, hi = Pos{}, Pos{}
	}
	lo.Y = 0
	if hi.Y < 0 {
		hi.Y = 0
	}
	pic := make(Picture, 0, hi.Y+1)
	for y := lo.Y; y <= hi.Y; y++ {
		row := make([]string, 0, hi.X-lo.X+1)
		for x := lo.X; x <= hi.X; x++ {
			row = append(row, c.At(Pos{X: x, Y: y}).Symbol())
		}
		pic = append(pic, row)
	}
	return pic
}

// Origin is the grid position of the picture's top-left cell.
func (c *Cave) Origin() Pos {
	lo, _, ok := c.grid.Bounds()
	if !ok {
		return Pos{}
	}
	return Pos{X: lo.X}
}

func (p Picture) Height() int { return len(p) }

func (p Picture) Width() int {
	if len(p) == 0 {
		return 0
	}
	return len(p[0])
}

// Lines joins each row into a string.
func (p Picture) Lines() []string {
	out := make([]string, len(p))
	for i, row := range p {
		out[i] = strings.Join(row, "")
	}
	return out
}

func (p Picture) String() string {
	var b strings.Builder
	for _, line := range p.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
