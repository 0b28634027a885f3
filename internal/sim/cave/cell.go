package cave

// Cell is the occupancy code of a grid cell.
type Cell uint8

const (
	Empty Cell = iota
	Rock
	Sand
)

func (c Cell) String() string {
	switch c {
	case Empty:
		return "empty"
	case Rock:
		return "rock"
	case Sand:
		return "sand"
	default:
		return "unknown"
	}
}

// Symbol is the single character used when painting c.
func (c Cell) Symbol() string {
	switch c {
	case Rock:
		return "#"
	case Sand:
		return "o"
	default:
		return "."
	}
}
