package cave

import "fmt"

// Pos is a cell coordinate. Y grows downwards.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DefaultSource is where new grains enter the cave.
var DefaultSource = Pos{X: 500, Y: 0}

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

func (p Pos) String() string { return fmt.Sprintf("%d,%d", p.X, p.Y) }

// key packs p into a single map key. Both halves keep their sign bits.
func (p Pos) key() uint64 {
	return uint64(uint32(int32(p.X)))<<32 | uint64(uint32(int32(p.Y)))
}

func posFromKey(k uint64) Pos {
	return Pos{X: int(int32(uint32(k >> 32))), Y: int(int32(uint32(k)))}
}

// Extent is the bounding box of the rock vertices. Min.Y is always 0 and
// Max.Y is the lowest rock row.
type Extent struct {
	Min Pos `json:"min"`
	Max Pos `json:"max"`
}

// ExtentOf computes the extent of all vertices in paths.
func ExtentOf(paths [][]Pos) Extent {
	var (
		ext   Extent
		first = true
	)
	for _, path := range paths {
		for _, p := range path {
			if first {
				ext.Min.X, ext.Max.X, ext.Max.Y = p.X, p.X, p.Y
				first = false
				continue
			}
			ext.Min.X = min(ext.Min.X, p.X)
			ext.Max.X = max(ext.Max.X, p.X)
			ext.Max.Y = max(ext.Max.Y, p.Y)
		}
	}
	return ext
}
