// Package tuning loads the YAML knobs for the world and the
// regeneration host from configs/tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz     int    `yaml:"tick_rate_hz"`
	Height         int    `yaml:"height"`
	WorldBoundaryR int    `yaml:"world_boundary_r"`
	Dimension      string `yaml:"dimension"`
	Seed           int64  `yaml:"seed"`

	TriggerItem    string   `yaml:"trigger_item"`
	ElevatedAgents []string `yaml:"elevated_agents"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      5,
		Height:          8,
		WorldBoundaryR:  64,
		Dimension:       "overworld",
		Seed:            1337,
		TriggerItem:     "regen_wand",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be positive")
	}
	if t.Height <= 0 {
		return t, fmt.Errorf("tuning.yaml: height must be positive")
	}
	if t.Dimension == "" {
		return t, fmt.Errorf("tuning.yaml: dimension must be set")
	}
	return t, nil
}
