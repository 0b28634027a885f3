package cave

// State is a point-in-time view of a cave's counters.
type State struct {
	Tick     int        `json:"tick"`
	Grains   int        `json:"grains"`
	Settled  int        `json:"settled"`
	Status   Status     `json:"status"`
	Grain    Pos        `json:"grain"`
	Extent   Extent     `json:"extent"`
	Cells    int        `json:"cells"`
	Overflow *Milestone `json:"overflow,omitempty"`
}

func (c *Cave) State() State {
	s := State{
		Tick:    c.ticks,
		Grains:  c.grains,
		Settled: c.Settled(),
		Status:  c.status,
		Grain:   c.grain,
		Extent:  c.cfg.Extent,
		Cells:   c.grid.Len(),
	}
	if c.overflow != nil {
		m := *c.overflow
		s.Overflow = &m
	}
	return s
}
