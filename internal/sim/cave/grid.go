package cave

import "github.com/kamstrup/intmap"

// Grid is a sparse occupancy map. Only Rock and Sand cells are stored;
// every absent coordinate reads as Empty.
type Grid struct {
	cells *intmap.Map[uint64, Cell]
}

func NewGrid() *Grid {
	return &Grid{cells: intmap.New[uint64, Cell](1024)}
}

func (g *Grid) Get(p Pos) Cell {
	c, ok := g.cells.Get(p.key())
	if !ok {
		return Empty
	}
	return c
}

// Set stores c at p. Setting Empty removes the entry.
func (g *Grid) Set(p Pos, c Cell) {
	if c == Empty {
		g.cells.Del(p.key())
		return
	}
	g.cells.Put(p.key(), c)
}

func (g *Grid) Len() int { return g.cells.Len() }

// Each calls fn for every populated cell in unspecified order until fn
// returns false.
func (g *Grid) Each(fn func(Pos, Cell) bool) {
	g.cells.ForEach(func(k uint64, c Cell) bool {
		return fn(posFromKey(k), c)
	})
}

// Bounds reports the smallest box holding every populated cell.
func (g *Grid) Bounds() (lo, hi Pos, ok bool) {
	g.Each(func(p Pos, _ Cell) bool {
		if !ok {
			lo, hi, ok = p, p, true
			return true
		}
		lo.X = min(lo.X, p.X)
		lo.Y = min(lo.Y, p.Y)
		hi.X = max(hi.X, p.X)
		hi.Y = max(hi.Y, p.Y)
		return true
	})
	return lo, hi, ok
}

// Count returns how many cells hold c.
func (g *Grid) Count(c Cell) int {
	n := 0
	g.Each(func(_ Pos, v Cell) bool {
		if v == c {
			n++
		}
		return true
	})
	return n
}
