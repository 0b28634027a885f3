package protocol

import (
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/session"
)

// SUBSCRIBE (client -> server)
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Rows            bool   `json:"rows,omitempty"`
}

// STEP (client -> server). At most one of Ticks, Grains, Until is set;
// an empty STEP advances one chunk.
type StepMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ticks           int    `json:"ticks,omitempty"`
	Grains          int    `json:"grains,omitempty"`
	Until           string `json:"until,omitempty"`
}

// Until targets.
const (
	UntilOverflow = "overflow"
	UntilBlocked  = "blocked"
)

// Limit translates the message into a cave limit. ok is false for an empty
// STEP.
func (m StepMsg) Limit() (l cave.Limit, ok bool) {
	switch {
	case m.Ticks > 0:
		return cave.Limit{Ticks: m.Ticks}, true
	case m.Grains > 0:
		return cave.Limit{Grains: m.Grains}, true
	case m.Until == UntilOverflow:
		return cave.Limit{UntilOverflow: true}, true
	case m.Until == UntilBlocked:
		return cave.Limit{}, true
	}
	return cave.Limit{}, false
}

// STATE (server -> client)
type StateMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Tick            int           `json:"tick"`
	Grains          int           `json:"grains"`
	Settled         int           `json:"settled"`
	Status          string        `json:"status"`
	Grain           [2]int        `json:"grain"`
	Extent          ExtentRef     `json:"extent"`
	Cells           int           `json:"cells"`
	Overflow        *MilestoneRef `json:"overflow,omitempty"`
	Reason          string        `json:"reason,omitempty"`
	Rows            []string      `json:"rows,omitempty"`
}

type ExtentRef struct {
	Min [2]int `json:"min"`
	Max [2]int `json:"max"`
}

type MilestoneRef struct {
	Grain   int    `json:"grain"`
	Settled int    `json:"settled"`
	Tick    int    `json:"tick"`
	Pos     [2]int `json:"pos"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func pair(p cave.Pos) [2]int { return [2]int{p.X, p.Y} }

// NewState converts a cave snapshot into a STATE message.
func NewState(s cave.State) StateMsg {
	m := StateMsg{
		Type:            TypeState,
		ProtocolVersion: Version,
		Tick:            s.Tick,
		Grains:          s.Grains,
		Settled:         s.Settled,
		Status:          s.Status.String(),
		Grain:           pair(s.Grain),
		Extent:          ExtentRef{Min: pair(s.Extent.Min), Max: pair(s.Extent.Max)},
		Cells:           s.Cells,
	}
	if o := s.Overflow; o != nil {
		m.Overflow = &MilestoneRef{
			Grain:   o.Grain,
			Settled: o.Settled,
			Tick:    o.Tick,
			Pos:     pair(o.Pos),
		}
	}
	return m
}

// NewFrame converts a session frame. Rows are only filled when the frame
// carries a picture.
func NewFrame(f session.Frame) StateMsg {
	m := NewState(f.State)
	if f.Outcome.Reason != 0 {
		m.Reason = f.Outcome.Reason.String()
	}
	m.Rows = f.Rows
	return m
}
