package regen

import (
	"errors"
	"testing"
)

func TestConfigureValidation(t *testing.T) {
	cases := []struct {
		name string
		in   ConfigInput
	}{
		{"all empty", ConfigInput{}},
		{"missing ticks", ConfigInput{BlockType: "stone", PlaceholderType: "dirt"}},
		{"missing block type", ConfigInput{GenerationTicks: "20", PlaceholderType: "dirt"}},
		{"missing placeholder", ConfigInput{GenerationTicks: "20", BlockType: "stone"}},
		{"blank placeholder", ConfigInput{GenerationTicks: "20", BlockType: "stone", PlaceholderType: "   "}},
		{"ticks not a number", ConfigInput{GenerationTicks: "soon", BlockType: "stone", PlaceholderType: "dirt"}},
		{"ticks zero", ConfigInput{GenerationTicks: "0", BlockType: "stone", PlaceholderType: "dirt"}},
		{"ticks negative", ConfigInput{GenerationTicks: "-4", BlockType: "stone", PlaceholderType: "dirt"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, store, _ := newTestEngine(t)
			if _, err := eng.Configure(tc.in); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Configure(%+v) err = %v, want ErrInvalidConfig", tc.in, err)
			}
			if store.Has(ConfigKey) {
				t.Fatal("failed Configure wrote the singleton")
			}
		})
	}
}

func TestConfigureOverwritesSingleton(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	mustConfigure(t, eng, 20)
	cfg, err := eng.Configure(ConfigInput{GenerationTicks: " 45 ", BlockType: "iron_ore", PlaceholderType: "stone"})
	if err != nil {
		t.Fatalf("second configure: %v", err)
	}
	if cfg.GenerationTicks != 45 {
		t.Fatalf("ticks = %d, want trimmed 45", cfg.GenerationTicks)
	}
	got, ok := eng.LoadConfig()
	if !ok {
		t.Fatal("LoadConfig failed")
	}
	if got != (GlobalConfig{GenerationTicks: 45, BlockType: "iron_ore", PlaceholderType: "stone"}) {
		t.Fatalf("stored config = %+v", got)
	}
}

func TestArmCreatesRecordOnce(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	cfg := mustConfigure(t, eng, 20)
	pos := [3]int{10, 65, -3}

	if err := eng.Arm(cfg, testDim, pos); err != nil {
		t.Fatalf("arm: %v", err)
	}
	rec := loadRecord(t, store, pos)
	if rec.Initialized || rec.Broken {
		t.Fatalf("fresh record: initialized=%v broken=%v, want both false", rec.Initialized, rec.Broken)
	}
	if rec.RemainingTicks != 20 || rec.GenerationTicks != 20 {
		t.Fatalf("fresh record ticks = %d/%d, want 20/20", rec.RemainingTicks, rec.GenerationTicks)
	}
	if rec.OriginalType != "mossy_stone" || rec.PlaceholderType != "cracked_stone" {
		t.Fatalf("fresh record types = %q/%q", rec.OriginalType, rec.PlaceholderType)
	}
	if rec.Dim != testDim || rec.Pos == nil || *rec.Pos != pos {
		t.Fatalf("fresh record location = %v %q", rec.Pos, rec.Dim)
	}
}

// Arming an already-armed cell is refused and the live record keeps its
// countdown state.
func TestArmRefusesExistingRecord(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	cfg := mustConfigure(t, eng, 20)
	pos := [3]int{1, 64, 2}
	mustArm(t, eng, pos)
	eng.Tick()
	eng.PostCommit(Actor{ID: "alice"}, pos)
	eng.Tick()
	eng.Tick() // countdown at 18

	if err := eng.Arm(cfg, testDim, pos); !errors.Is(err, ErrAlreadyArmed) {
		t.Fatalf("re-arm err = %v, want ErrAlreadyArmed", err)
	}
	rec := loadRecord(t, store, pos)
	if !rec.Broken || rec.RemainingTicks != 18 {
		t.Fatalf("record after refused re-arm: broken=%v remaining=%d, want broken at 18", rec.Broken, rec.RemainingTicks)
	}
}

func TestArmRejectsUnusableConfig(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	if err := eng.Arm(GlobalConfig{}, testDim, [3]int{0, 0, 0}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("arm with zero config err = %v, want ErrNotConfigured", err)
	}
	if keys := store.Keys(); len(keys) != 0 {
		t.Fatalf("store keys = %v, want none", keys)
	}
}

func TestHandleUse(t *testing.T) {
	pos := [3]int{2, 64, 2}

	t.Run("wrong held item", func(t *testing.T) {
		eng, _, world := newTestEngine(t)
		mustConfigure(t, eng, 20)
		world.blocks[pos] = "stone"
		err := eng.HandleUse(Actor{ID: "alice", HeldItem: "pickaxe"}, testDim, pos)
		if !errors.Is(err, ErrMissingTrigger) {
			t.Fatalf("err = %v, want ErrMissingTrigger", err)
		}
	})

	t.Run("empty cell", func(t *testing.T) {
		eng, _, _ := newTestEngine(t)
		mustConfigure(t, eng, 20)
		err := eng.HandleUse(Actor{ID: "alice", HeldItem: "regen_wand"}, testDim, pos)
		if !errors.Is(err, ErrEmptyCell) {
			t.Fatalf("err = %v, want ErrEmptyCell", err)
		}
	})

	t.Run("no configuration", func(t *testing.T) {
		eng, store, world := newTestEngine(t)
		world.blocks[pos] = "stone"
		err := eng.HandleUse(Actor{ID: "alice", HeldItem: "regen_wand"}, testDim, pos)
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("err = %v, want ErrNotConfigured", err)
		}
		if store.Has(RecordKey(pos)) {
			t.Fatal("record created without configuration")
		}
	})

	t.Run("arms the cell", func(t *testing.T) {
		eng, store, world := newTestEngine(t)
		mustConfigure(t, eng, 20)
		world.blocks[pos] = "stone"
		if err := eng.HandleUse(Actor{ID: "alice", HeldItem: "regen_wand"}, testDim, pos); err != nil {
			t.Fatalf("use: %v", err)
		}
		rec := loadRecord(t, store, pos)
		if rec.Initialized || rec.GenerationTicks != 20 {
			t.Fatalf("record = %+v", rec)
		}
	})

	t.Run("already armed", func(t *testing.T) {
		eng, _, world := newTestEngine(t)
		mustConfigure(t, eng, 20)
		world.blocks[pos] = "stone"
		actor := Actor{ID: "alice", HeldItem: "regen_wand"}
		if err := eng.HandleUse(actor, testDim, pos); err != nil {
			t.Fatalf("first use: %v", err)
		}
		if err := eng.HandleUse(actor, testDim, pos); !errors.Is(err, ErrAlreadyArmed) {
			t.Fatalf("second use err = %v, want ErrAlreadyArmed", err)
		}
	})
}
