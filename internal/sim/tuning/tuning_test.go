package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := `
protocol_version: "1.0"
tick_rate_hz: 10
height: 4
world_boundary_r: 32
dimension: overworld
seed: 42
trigger_item: regen_wand
elevated_agents:
  - warden
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.TickRateHz != 10 || tn.Height != 4 || tn.Seed != 42 {
		t.Fatalf("unexpected tuning: %+v", tn)
	}
	if len(tn.ElevatedAgents) != 1 || tn.ElevatedAgents[0] != "warden" {
		t.Fatalf("elevated agents: %v", tn.ElevatedAgents)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero tick rate")
	}
}
