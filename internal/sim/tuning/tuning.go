package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sandcave.dev/internal/sim/cave"
)

type Tuning struct {
	// Source is the [x, y] cell new grains spawn at.
	Source     [2]int `yaml:"source"`
	Bottomless bool   `yaml:"bottomless"`

	// AllowDiagonal accepts rock segments that change both coordinates.
	AllowDiagonal bool `yaml:"allow_diagonal"`

	StepGrains         int `yaml:"step_grains"`
	ProgressEveryTicks int `yaml:"progress_every_ticks"`
	AutoplayIntervalMs int `yaml:"autoplay_interval_ms"`

	// StreamRows includes the rendered picture in every streamed state frame.
	StreamRows bool `yaml:"stream_rows"`
}

func Defaults() Tuning {
	return Tuning{
		Source:             [2]int{cave.DefaultSource.X, cave.DefaultSource.Y},
		StepGrains:         10,
		ProgressEveryTicks: 100000,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("cave.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("cave.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.Source[1] < 0 {
		errs = append(errs, fmt.Errorf("source y must be >= 0, got %d", t.Source[1]))
	}
	if t.StepGrains <= 0 {
		errs = append(errs, fmt.Errorf("step_grains must be > 0, got %d", t.StepGrains))
	}
	if t.ProgressEveryTicks <= 0 {
		errs = append(errs, fmt.Errorf("progress_every_ticks must be > 0, got %d", t.ProgressEveryTicks))
	}
	if t.AutoplayIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("autoplay_interval_ms must be >= 0, got %d", t.AutoplayIntervalMs))
	}
	return errors.Join(errs...)
}

func (t Tuning) SourcePos() cave.Pos { return cave.Pos{X: t.Source[0], Y: t.Source[1]} }

func (t Tuning) AutoplayInterval() time.Duration {
	return time.Duration(t.AutoplayIntervalMs) * time.Millisecond
}

// CaveConfig returns the cave settings for a cave sized to ext.
func (t Tuning) CaveConfig(ext cave.Extent) cave.Config {
	src := t.SourcePos()
	return cave.Config{
		Extent:     ext,
		Source:     &src,
		Bottomless: t.Bottomless,
	}
}

func (t Tuning) ParseOptions() cave.ParseOptions {
	return cave.ParseOptions{AllowDiagonal: t.AllowDiagonal}
}
