package main

import (
	"fmt"
	"os"
)

const usage = `usage: admin <command> [flags]

commands:
  runs        list recorded runs from the run index
  milestones  list milestones from the run index
  state       print the live state of a server
  step        advance a server (-ticks, -grains or -until)
  reset       rebuild a server's cave from its rock scan
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "runs":
		runsCmd(os.Args[2:])
	case "milestones":
		milestonesCmd(os.Args[2:])
	case "state":
		stateCmd(os.Args[2:])
	case "step":
		stepCmd(os.Args[2:])
	case "reset":
		resetCmd(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
