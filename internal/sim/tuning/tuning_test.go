package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sandcave.dev/internal/sim/cave"
)

func TestLoad_ConfigsCaveYAML(t *testing.T) {
	tune, err := Load("../../../configs/cave.yaml")
	if err != nil {
		t.Fatalf("load cave.yaml: %v", err)
	}
	if got := tune.SourcePos(); got != cave.DefaultSource {
		t.Fatalf("source: got %v want %v", got, cave.DefaultSource)
	}
	if tune.StepGrains != 10 {
		t.Fatalf("step_grains: got %d want 10", tune.StepGrains)
	}
	if !tune.StreamRows {
		t.Fatalf("stream_rows should be enabled in the shipped config")
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cave.yaml")
	if err := os.WriteFile(path, []byte("bottomless: true\nautoplay_interval_ms: 250\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Defaults()
	if tune.StepGrains != def.StepGrains || tune.ProgressEveryTicks != def.ProgressEveryTicks {
		t.Fatalf("defaults lost: %+v", tune)
	}
	if !tune.Bottomless {
		t.Fatalf("bottomless not applied")
	}
	if got := tune.AutoplayInterval().Milliseconds(); got != 250 {
		t.Fatalf("autoplay interval: got %dms want 250ms", got)
	}
	cfg := tune.CaveConfig(cave.Extent{Max: cave.Pos{X: 10, Y: 10}})
	if !cfg.Bottomless || cfg.Source == nil || *cfg.Source != cave.DefaultSource {
		t.Fatalf("cave config mismatch: %+v", cfg)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cave.yaml")
	if err := os.WriteFile(path, []byte("step_grains: 0\nsource: [500, -1]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"cave.yaml", "step_grains", "source y"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	tune, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if tune.StepGrains != Defaults().StepGrains {
		t.Fatalf("expected defaults on error")
	}
}

func TestCaveConfig_KeepsOriginSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cave.yaml")
	if err := os.WriteFile(path, []byte("source: [0, 0]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := cave.New(tune.CaveConfig(cave.Extent{Max: cave.Pos{X: 4, Y: 4}}))
	if got := c.Source(); got != (cave.Pos{}) {
		t.Fatalf("source: got %v want 0,0", got)
	}
}
