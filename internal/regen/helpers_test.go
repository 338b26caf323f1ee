package regen

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"blockregen.dev/internal/kvstore"
)

const testDim = "overworld"

type blockSet struct {
	Dim  string
	Pos  [3]int
	Type string
}

// fakeWorld is a single-dimension cell map that records every mutation.
type fakeWorld struct {
	blocks  map[[3]int]string
	sets    []blockSet
	failSet bool
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{blocks: make(map[[3]int]string)}
}

func (w *fakeWorld) BlockType(dim string, pos [3]int) string {
	if dim != testDim {
		return ""
	}
	return w.blocks[pos]
}

func (w *fakeWorld) SetBlockType(dim string, pos [3]int, blockType string) error {
	if w.failSet {
		return errors.New("mutation rejected")
	}
	if dim != testDim {
		return fmt.Errorf("unknown dimension %q", dim)
	}
	w.blocks[pos] = blockType
	w.sets = append(w.sets, blockSet{Dim: dim, Pos: pos, Type: blockType})
	return nil
}

// setsAt counts mutations applied to pos.
func (w *fakeWorld) setsAt(pos [3]int) int {
	n := 0
	for _, s := range w.sets {
		if s.Pos == pos {
			n++
		}
	}
	return n
}

func newTestEngine(t *testing.T) (*Engine, *kvstore.Store, *fakeWorld) {
	t.Helper()
	store := kvstore.New(kvstore.NewMemory(), nil)
	world := newFakeWorld()
	return NewEngine(store, world, "regen_wand", nil), store, world
}

func mustConfigure(t *testing.T, e *Engine, ticks int) GlobalConfig {
	t.Helper()
	cfg, err := e.Configure(ConfigInput{
		GenerationTicks: strconv.Itoa(ticks),
		BlockType:       "mossy_stone",
		PlaceholderType: "cracked_stone",
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	return cfg
}

func mustArm(t *testing.T, e *Engine, pos [3]int) {
	t.Helper()
	cfg, ok := e.LoadConfig()
	if !ok {
		t.Fatal("no configuration loaded")
	}
	if err := e.Arm(cfg, testDim, pos); err != nil {
		t.Fatalf("arm %v: %v", pos, err)
	}
}

func loadRecord(t *testing.T, s *kvstore.Store, pos [3]int) Record {
	t.Helper()
	var rec Record
	if !s.Get(RecordKey(pos), &rec) {
		t.Fatalf("no record for %v", pos)
	}
	return rec
}
