package cave

// Reason tells why Advance stopped.
type Reason uint8

const (
	ReasonBlocked Reason = iota + 1
	ReasonOverflow
	ReasonTicks
	ReasonGrains
)

func (r Reason) String() string {
	switch r {
	case ReasonBlocked:
		return "blocked"
	case ReasonOverflow:
		return "overflow"
	case ReasonTicks:
		return "ticks"
	case ReasonGrains:
		return "grains"
	default:
		return "none"
	}
}

func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Limit bounds a call to Advance. Zero fields are ignored; a zero Limit runs
// until the cave is blocked. A bottomless cave also stops at an overflow
// unless Ticks is set.
type Limit struct {
	// Ticks stops after this many successful ticks.
	Ticks int
	// Grains stops once the grain counter enters the next multiple of Grains.
	Grains int
	// UntilOverflow stops after the first tick that leaves the grain below
	// the lowest rock.
	UntilOverflow bool
}

// Outcome summarizes one call to Advance.
type Outcome struct {
	Ticks  int    `json:"ticks"`
	Reason Reason `json:"reason"`
	// Overflowed is set when this call recorded the first overflow.
	Overflowed bool `json:"overflowed,omitempty"`
}

// Advance ticks the cave until a limit is hit. After every successful tick
// it checks for the first overflow and records it as a milestone.
func (c *Cave) Advance(l Limit) Outcome {
	var out Outcome
	startGrains := c.grains
	for {
		if l.Ticks > 0 && out.Ticks >= l.Ticks {
			out.Reason = ReasonTicks
			return out
		}
		if !c.Tick() {
			out.Reason = ReasonBlocked
			return out
		}
		out.Ticks++
		overflowing := c.Overflowing()
		if overflowing && c.overflow == nil {
			c.overflow = &Milestone{
				Grain:   c.grains,
				Settled: c.Settled(),
				Tick:    c.ticks,
				Pos:     c.grain,
			}
			out.Overflowed = true
		}
		// A bottomless grain never settles, so only a tick limit can
		// bound the fall.
		if overflowing && (l.UntilOverflow || c.cfg.Bottomless && l.Ticks == 0) {
			out.Reason = ReasonOverflow
			return out
		}
		if l.Grains > 0 && c.grains/l.Grains != startGrains/l.Grains {
			out.Reason = ReasonGrains
			return out
		}
	}
}
