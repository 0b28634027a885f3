package main

import (
	"fmt"
	"os"
	"strings"

	"sandcave.dev/internal/persistence/indexdb"
	"sandcave.dev/internal/sim/batch"
	"sandcave.dev/internal/sim/cave"
	"sandcave.dev/internal/sim/tuning"
)

type runtimeIndex interface {
	Close() error
	UpsertTuning(tune tuning.Tuning) error
	RecordRun(info indexdb.RunInfo, rep batch.Report)
	RecordMilestone(run, kind string, st cave.State)
	Stats() indexdb.Stats
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(indexdb.DefaultPath(dataDir))
	default:
		return nil, fmt.Errorf("unsupported SC_INDEX_BACKEND: %s", backend)
	}
}
