// Package batch runs a cave to completion and reports both answers.
package batch

import (
	"context"
	"time"

	"sandcave.dev/internal/sim/cave"
)

type Options struct {
	// ProgressEvery is the number of ticks between progress callbacks and
	// between cancellation checks. Defaults to 100000.
	ProgressEvery int
	OnProgress    func(cave.State)
	// OnMilestone is called once for the overflow and once when the source
	// blocks.
	OnMilestone func(kind string, s cave.State)
}

const (
	MilestoneOverflow = "overflow"
	MilestoneBlocked  = "blocked"
)

// Report holds the results of a run.
type Report struct {
	// FirstOverflowGrain is the number of the first grain to fall below the
	// lowest rock.
	FirstOverflowGrain int `json:"first_overflow_grain"`
	// Part1 is the number of grains at rest when the first grain overflowed.
	Part1      int `json:"part1"`
	Part1Ticks int `json:"part1_ticks"`
	// Part2 is the number of grains at rest once the source is blocked. It
	// stays zero for bottomless caves.
	Part2   int  `json:"part2"`
	Ticks   int  `json:"ticks"`
	Blocked bool `json:"blocked"`

	Elapsed time.Duration `json:"elapsed_ns"`
}

// Solve advances c until the first overflow and then until the source is
// blocked. It checks ctx between chunks of ProgressEvery ticks.
func Solve(ctx context.Context, c *cave.Cave, opts Options) (Report, error) {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100000
	}
	start := time.Now()
	var rep Report

	milestone := func(kind string) {
		if opts.OnMilestone != nil {
			opts.OnMilestone(kind, c.State())
		}
	}

	for c.Overflow() == nil && !c.Blocked() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		out := c.Advance(cave.Limit{Ticks: untilNext(c, opts.ProgressEvery), UntilOverflow: true})
		if out.Reason == cave.ReasonTicks && opts.OnProgress != nil {
			opts.OnProgress(c.State())
		}
	}
	if m := c.Overflow(); m != nil {
		rep.FirstOverflowGrain = m.Grain
		rep.Part1 = m.Settled
		rep.Part1Ticks = m.Tick
		milestone(MilestoneOverflow)
	}

	if !c.Config().Bottomless {
		for !c.Blocked() {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			out := c.Advance(cave.Limit{Ticks: untilNext(c, opts.ProgressEvery)})
			if out.Reason == cave.ReasonTicks && opts.OnProgress != nil {
				opts.OnProgress(c.State())
			}
		}
		rep.Part2 = c.Settled()
		rep.Blocked = true
		milestone(MilestoneBlocked)
	}

	rep.Ticks = c.Ticks()
	rep.Elapsed = time.Since(start)
	return rep, nil
}

// untilNext is the number of ticks until the tick counter reaches the next
// multiple of every.
func untilNext(c *cave.Cave, every int) int {
	return every - c.Ticks()%every
}
