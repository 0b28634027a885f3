package cave

// DrawRock marks every vertex of path and every cell on the axis-aligned
// segments between consecutive vertices as Rock. Segments that change both
// coordinates contribute only their endpoints.
func (c *Cave) DrawRock(path []Pos) {
	for _, p := range path {
		c.grid.Set(p, Rock)
	}
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		switch {
		case a.X == b.X:
			for y := min(a.Y, b.Y); y <= max(a.Y, b.Y); y++ {
				c.grid.Set(Pos{X: a.X, Y: y}, Rock)
			}
		case a.Y == b.Y:
			for x := min(a.X, b.X); x <= max(a.X, b.X); x++ {
				c.grid.Set(Pos{X: x, Y: a.Y}, Rock)
			}
		}
	}
}
