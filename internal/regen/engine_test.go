package regen

import (
	"errors"
	"testing"

	"blockregen.dev/internal/kvstore"
)

// First scan after arming places the original block exactly once.
func TestFirstScanInitializes(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 20)
	pos := [3]int{4, 64, -9}
	mustArm(t, eng, pos)

	st := eng.Tick()
	if st.Initialized != 1 {
		t.Fatalf("stats.Initialized = %d, want 1", st.Initialized)
	}
	rec := loadRecord(t, store, pos)
	if !rec.Initialized || rec.Broken {
		t.Fatalf("record after first scan: initialized=%v broken=%v", rec.Initialized, rec.Broken)
	}
	if rec.RemainingTicks != 20 {
		t.Fatalf("remaining = %d, want 20", rec.RemainingTicks)
	}
	if got := world.BlockType(testDim, pos); got != "mossy_stone" {
		t.Fatalf("block = %q, want original placed", got)
	}

	// Subsequent scans must not re-apply the first-time placement.
	for i := 0; i < 5; i++ {
		st = eng.Tick()
	}
	if st.Idle != 1 || st.Initialized != 0 {
		t.Fatalf("idle scan stats = %+v", st)
	}
	if n := world.setsAt(pos); n != 1 {
		t.Fatalf("placements at %v = %d, want exactly 1", pos, n)
	}
}

// A broken record counts down one tick per scan; the decrement that
// reaches zero restores the original in the same pass.
func TestCountdownAndRestore(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 20)
	pos := [3]int{0, 60, 0}
	mustArm(t, eng, pos)
	eng.Tick()

	out := eng.PostCommit(Actor{ID: "alice"}, pos)
	if out.Kind != BreakCountdown || out.Ticks != 20 {
		t.Fatalf("post-commit outcome = %+v", out)
	}
	if got := world.BlockType(testDim, pos); got != "cracked_stone" {
		t.Fatalf("block after break = %q, want placeholder", got)
	}

	for i := 1; i <= 19; i++ {
		st := eng.Tick()
		rec := loadRecord(t, store, pos)
		if rec.RemainingTicks < 0 {
			t.Fatalf("tick %d: remaining went negative: %d", i, rec.RemainingTicks)
		}
		if !rec.Broken {
			t.Fatalf("tick %d: restored early (remaining=%d)", i, rec.RemainingTicks)
		}
		if rec.RemainingTicks != 20-i {
			t.Fatalf("tick %d: remaining = %d, want %d", i, rec.RemainingTicks, 20-i)
		}
		if st.Counting != 1 {
			t.Fatalf("tick %d: stats = %+v", i, st)
		}
	}

	st := eng.Tick() // 20th decrement hits zero
	if st.Restored != 1 {
		t.Fatalf("20th tick stats = %+v, want one restore", st)
	}
	rec := loadRecord(t, store, pos)
	if rec.Broken {
		t.Fatal("record still broken after restore")
	}
	if rec.RemainingTicks != 20 {
		t.Fatalf("remaining after restore = %d, want reset to 20", rec.RemainingTicks)
	}
	if got := world.BlockType(testDim, pos); got != "mossy_stone" {
		t.Fatalf("block after restore = %q, want original", got)
	}

	// Restored records idle until the next break.
	st = eng.Tick()
	if st.Idle != 1 || st.Restored != 0 {
		t.Fatalf("post-restore stats = %+v", st)
	}
}

// Structurally invalid records are deleted on sight and never touch the
// world; valid records in the same pass are still processed.
func TestScanDeletesInvalidRecords(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 5)
	good := [3]int{1, 64, 1}
	mustArm(t, eng, good)

	// Missing original_type, so there is nothing to restore.
	bad := [3]int{2, 64, 2}
	p := bad
	store.Set(RecordKey(bad), &Record{Pos: &p, Dim: testDim, PlaceholderType: "cracked_stone", RemainingTicks: 5, GenerationTicks: 5})
	// Missing position entirely.
	store.Set(RecordKeyPrefix+"999999999999999", map[string]any{"original_type": "stone", "placeholder_type": "dirt"})

	st := eng.Tick()
	if st.Deleted != 2 {
		t.Fatalf("stats.Deleted = %d, want 2", st.Deleted)
	}
	if st.Initialized != 1 {
		t.Fatalf("valid record was not processed: %+v", st)
	}
	if store.Has(RecordKey(bad)) {
		t.Fatal("invalid record still stored")
	}
	if n := world.setsAt(bad); n != 0 {
		t.Fatalf("invalid record caused %d mutations", n)
	}
}

// Keys outside the record prefix are never touched by the scan.
func TestScanIgnoresForeignKeys(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	mustConfigure(t, eng, 5)
	store.Set("world.seed", 42)

	st := eng.Tick()
	if st.Deleted != 0 || st.Scanned != 0 {
		t.Fatalf("stats = %+v, want empty pass", st)
	}
	if !store.Has(ConfigKey) || !store.Has("world.seed") {
		t.Fatal("scan touched keys outside the record prefix")
	}
}

// While a record counts down, the scan keeps the placeholder visible:
// if the cell stops showing it (lost mutation, chunk rebuilt after a
// restart), the next pass puts it back.
func TestCountdownReassertsPlaceholder(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 10)
	pos := [3]int{6, 64, -2}
	mustArm(t, eng, pos)
	eng.Tick()
	eng.PostCommit(Actor{ID: "alice"}, pos)

	// The cell loses its placeholder out of band.
	delete(world.blocks, pos)

	st := eng.Tick()
	if st.Counting != 1 {
		t.Fatalf("stats = %+v, want one counting record", st)
	}
	if got := world.BlockType(testDim, pos); got != "cracked_stone" {
		t.Fatalf("block = %q, want placeholder re-placed", got)
	}
	rec := loadRecord(t, store, pos)
	if rec.RemainingTicks != 9 {
		t.Fatalf("remaining = %d, want countdown to continue at 9", rec.RemainingTicks)
	}

	// While the placeholder is already showing, the scan leaves the
	// cell alone.
	before := world.setsAt(pos)
	eng.Tick()
	if n := world.setsAt(pos); n != before {
		t.Fatalf("placements at %v went %d -> %d during quiet countdown", pos, before, n)
	}
}

// Two armed cells hold independent records with independent countdowns;
// breaking one never disturbs the other.
func TestRecordsAreIndependentPerCell(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 10)
	a := [3]int{1, 64, 1}
	b := [3]int{2, 64, 2}
	mustArm(t, eng, a)
	mustArm(t, eng, b)

	st := eng.Tick()
	if st.Initialized != 2 {
		t.Fatalf("stats.Initialized = %d, want both cells initialized", st.Initialized)
	}
	if RecordKey(a) == RecordKey(b) {
		t.Fatalf("cells %v and %v share store key %q", a, b, RecordKey(a))
	}

	eng.PostCommit(Actor{ID: "alice"}, a)
	eng.Tick()
	eng.Tick()
	eng.PostCommit(Actor{ID: "alice"}, b)
	st = eng.Tick()
	if st.Counting != 2 {
		t.Fatalf("stats = %+v, want two counting records", st)
	}

	ra, rb := loadRecord(t, store, a), loadRecord(t, store, b)
	if ra.RemainingTicks != 7 || rb.RemainingTicks != 9 {
		t.Fatalf("remaining = %d/%d, want staggered 7/9", ra.RemainingTicks, rb.RemainingTicks)
	}

	// Drain the first cell's countdown; the second keeps its own clock.
	for i := 0; i < 7; i++ {
		eng.Tick()
	}
	if got := world.BlockType(testDim, a); got != "mossy_stone" {
		t.Fatalf("first cell = %q, want restored", got)
	}
	if got := world.BlockType(testDim, b); got != "cracked_stone" {
		t.Fatalf("second cell = %q, want still counting", got)
	}
	rb = loadRecord(t, store, b)
	if rb.Broken == false || rb.RemainingTicks != 2 {
		t.Fatalf("second record = %+v, want broken with 2 remaining", rb)
	}
}

// A failed block mutation is logged and dropped; the record's logical
// state advances anyway and the record survives for later retries.
func TestMutationFailureStillAdvances(t *testing.T) {
	eng, store, world := newTestEngine(t)
	mustConfigure(t, eng, 5)
	pos := [3]int{7, 64, 7}
	mustArm(t, eng, pos)

	world.failSet = true
	st := eng.Tick()
	if st.Initialized != 1 {
		t.Fatalf("stats = %+v", st)
	}
	rec := loadRecord(t, store, pos)
	if !rec.Initialized {
		t.Fatal("initialized flag did not advance past failed mutation")
	}
	if got := world.BlockType(testDim, pos); got != "" {
		t.Fatalf("block = %q, want untouched", got)
	}
}

// A record whose dimension the host no longer knows is retried forever,
// not deleted: the mutation fails but the state machine keeps going.
func TestStaleDimensionRetries(t *testing.T) {
	eng, store, _ := newTestEngine(t)
	mustConfigure(t, eng, 3)
	cfg, _ := eng.LoadConfig()
	pos := [3]int{3, 64, 3}
	if err := eng.Arm(cfg, "the_nether", pos); err != nil {
		t.Fatalf("arm: %v", err)
	}

	for i := 0; i < 4; i++ {
		eng.Tick()
	}
	rec := loadRecord(t, store, pos)
	if !rec.Initialized {
		t.Fatal("record did not initialize logically")
	}
	if !store.Has(RecordKey(pos)) {
		t.Fatal("stale-dimension record was deleted")
	}
}

type flakySetBackend struct {
	kvstore.Backend
	failSets int
}

func (f *flakySetBackend) Set(key string, value []byte) error {
	if f.failSets > 0 {
		f.failSets--
		return errors.New("backend write refused")
	}
	return f.Backend.Set(key, value)
}

// A transient store-write failure loses nothing: the decrement that did
// not persist is simply taken again on a later pass.
func TestStoreWriteFailureSelfHeals(t *testing.T) {
	flaky := &flakySetBackend{Backend: kvstore.NewMemory()}
	store := kvstore.New(flaky, nil)
	world := newFakeWorld()
	eng := NewEngine(store, world, "regen_wand", nil)

	mustConfigure(t, eng, 10)
	pos := [3]int{5, 64, 5}
	mustArm(t, eng, pos)
	eng.Tick()
	eng.PostCommit(Actor{ID: "alice"}, pos)

	flaky.failSets = 2
	eng.Tick() // decrement to 9 computed, persist refused
	eng.Tick() // same again
	rec := loadRecord(t, store, pos)
	if rec.RemainingTicks != 10 {
		t.Fatalf("remaining = %d after refused writes, want 10", rec.RemainingTicks)
	}

	eng.Tick() // store healed, this decrement lands
	rec = loadRecord(t, store, pos)
	if rec.RemainingTicks != 9 {
		t.Fatalf("remaining = %d after healed write, want 9", rec.RemainingTicks)
	}
}

// Set followed by Get yields an equal record.
func TestRecordRoundTrip(t *testing.T) {
	store := kvstore.New(kvstore.NewMemory(), nil)
	p := [3]int{-12, 70, 301}
	in := Record{
		Pos:             &p,
		Dim:             testDim,
		OriginalType:    "iron_ore",
		PlaceholderType: "stone",
		RemainingTicks:  7,
		GenerationTicks: 40,
		Initialized:     true,
		Broken:          true,
	}
	if !store.Set(RecordKey(p), &in) {
		t.Fatal("set failed")
	}
	var out Record
	if !store.Get(RecordKey(p), &out) {
		t.Fatal("get failed")
	}
	if out.Pos == nil || *out.Pos != p {
		t.Fatalf("pos = %v, want %v", out.Pos, p)
	}
	in.Pos, out.Pos = nil, nil
	if in != out {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, in)
	}
}
