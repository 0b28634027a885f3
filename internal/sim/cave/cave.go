package cave

// Status is the lifecycle state of a cave.
type Status uint8

const (
	// Falling means a grain is in flight and Tick can make progress.
	Falling Status = iota
	// Blocked means the source is occupied and no grain can enter.
	Blocked
)

func (s Status) String() string {
	if s == Blocked {
		return "blocked"
	}
	return "falling"
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type Config struct {
	Extent Extent
	// Source is where grains spawn. Nil means DefaultSource.
	Source *Pos
	// Bottomless removes the implicit floor two rows below Extent.Max.Y.
	Bottomless bool
}

func (c *Config) applyDefaults() {
	src := DefaultSource
	if c.Source != nil {
		src = *c.Source
	}
	c.Source = &src
}

// Milestone records the counters at a notable moment of a run.
type Milestone struct {
	Grain   int `json:"grain"`
	Settled int `json:"settled"`
	Tick    int `json:"tick"`
	Pos     Pos `json:"pos"`
}

// Cave is a single falling-sand simulation. It is not safe for concurrent
// use; see session.Session for a guarded wrapper.
type Cave struct {
	cfg    Config
	grid   *Grid
	source Pos

	grain  Pos
	ticks  int
	grains int
	status Status

	overflow *Milestone
}

// New returns an empty cave with the first grain waiting at the source.
func New(cfg Config) *Cave {
	cfg.applyDefaults()
	c := &Cave{
		cfg:    cfg,
		grid:   NewGrid(),
		source: *cfg.Source,
		grain:  *cfg.Source,
		grains: 1,
	}
	c.grid.Set(c.grain, Sand)
	return c
}

// Build creates a cave sized to paths and draws every path into it.
func Build(paths [][]Pos, cfg Config) *Cave {
	if cfg.Extent == (Extent{}) {
		cfg.Extent = ExtentOf(paths)
	}
	c := New(cfg)
	for _, path := range paths {
		c.DrawRock(path)
	}
	return c
}

func (c *Cave) Config() Config       { return c.cfg }
func (c *Cave) Extent() Extent       { return c.cfg.Extent }
func (c *Cave) Source() Pos          { return c.source }
func (c *Cave) Grid() *Grid          { return c.grid }
func (c *Cave) Grain() Pos           { return c.grain }
func (c *Cave) Ticks() int           { return c.ticks }
func (c *Cave) Status() Status       { return c.status }
func (c *Cave) Blocked() bool        { return c.status == Blocked }
func (c *Cave) Overflow() *Milestone { return c.overflow }

// Grains is the number of the grain currently in play, counting from 1.
func (c *Cave) Grains() int { return c.grains }

// Settled is the number of grains at rest.
func (c *Cave) Settled() int {
	if c.status == Blocked {
		return c.grains
	}
	return c.grains - 1
}

// At reads the cell at p, including the implicit floor.
func (c *Cave) At(p Pos) Cell {
	if !c.cfg.Bottomless && p.Y > c.cfg.Extent.Max.Y+1 {
		return Rock
	}
	return c.grid.Get(p)
}

// Done reports whether more ticks are pointless: the source is blocked, or
// the first grain has fallen out of a bottomless cave.
func (c *Cave) Done() bool {
	return c.status == Blocked || c.cfg.Bottomless && c.overflow != nil
}

// Overflowing reports whether the falling grain is below the lowest rock.
func (c *Cave) Overflowing() bool {
	return c.status == Falling && c.grain.Y > c.cfg.Extent.Max.Y
}

// Tick advances the falling grain by one cell, or settles it and spawns the
// next grain. It returns false once the source is blocked.
func (c *Cave) Tick() bool {
	if c.status == Blocked {
		return false
	}
	if c.grid.Get(c.grain) != Sand {
		// Rock was drawn over the grain.
		c.status = Blocked
		return false
	}
	if next, ok := c.fall(); ok {
		c.grid.Set(c.grain, Empty)
		c.grid.Set(next, Sand)
		c.grain = next
		c.ticks++
		return true
	}
	if c.At(c.source) != Empty {
		c.status = Blocked
		return false
	}
	c.grains++
	c.grain = c.source
	c.grid.Set(c.grain, Sand)
	c.ticks++
	return true
}

func (c *Cave) fall() (Pos, bool) {
	for _, dx := range [...]int{0, -1, 1} {
		next := c.grain.Add(dx, 1)
		if c.At(next) == Empty {
			return next, true
		}
	}
	return Pos{}, false
}
