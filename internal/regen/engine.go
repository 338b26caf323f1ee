// Package regen is the block regeneration state machine: cells are
// armed with a persisted record, a break swaps in a placeholder, and a
// per-tick scan counts the record down and restores the original block.
//
// All state lives in the kv store as JSON records; the engine itself is
// stateless between ticks and rebuilds its view from the key list every
// pass, so it survives restarts and transient store failures by simply
// scanning again. Everything here runs on the host world's single loop
// goroutine.
package regen

import (
	"io"
	"log"
	"strings"

	"blockregen.dev/internal/kvstore"
)

// WorldAccess is what the regeneration system needs from the host
// world: cell lookup and the block mutation primitive. SetBlockType
// failures are best-effort territory; the record's logical state
// advances regardless and the failure is only logged.
type WorldAccess interface {
	// BlockType reports the block type id at pos, "" when the cell is
	// empty.
	BlockType(dim string, pos [3]int) string
	SetBlockType(dim string, pos [3]int, blockType string) error
}

// Engine drives every persisted record through at most one state
// transition per tick and hosts the arming and break workflows.
type Engine struct {
	store       *kvstore.Store
	world       WorldAccess
	triggerItem string
	log         *log.Logger
}

// NewEngine wires the engine to its collaborators. triggerItem is the
// held-item id that arms cells on use. A nil logger discards logs.
func NewEngine(store *kvstore.Store, world WorldAccess, triggerItem string, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Engine{store: store, world: world, triggerItem: triggerItem, log: logger}
}

// Stats summarizes one scan pass, for tick logs and metrics.
type Stats struct {
	Scanned     int `json:"scanned"`
	Initialized int `json:"initialized,omitempty"`
	Counting    int `json:"counting,omitempty"`
	Restored    int `json:"restored,omitempty"`
	Idle        int `json:"idle,omitempty"`
	Deleted     int `json:"deleted,omitempty"`
}

// Tick runs one scan: list keys, load each record under the prefix,
// apply exactly one transition. Unreadable records are skipped (the
// store logged why; they are retried next tick), structurally invalid
// ones are deleted. No single record can abort the pass.
func (e *Engine) Tick() Stats {
	var st Stats
	for _, key := range e.store.Keys() {
		if !strings.HasPrefix(key, RecordKeyPrefix) {
			continue
		}
		var rec Record
		if !e.store.Get(key, &rec) {
			continue
		}
		if !rec.Valid() {
			e.store.Remove(key)
			st.Deleted++
			continue
		}
		st.Scanned++

		switch {
		case !rec.Initialized:
			// First scan after arming: put the original block in place.
			e.placeBlock(&rec, rec.OriginalType)
			rec.Initialized = true
			e.store.Set(key, &rec)
			st.Initialized++

		case rec.Broken:
			rec.RemainingTicks--
			if rec.RemainingTicks <= 0 {
				// The decrement that reaches zero completes the cycle
				// in the same pass: restore and re-arm.
				e.placeBlock(&rec, rec.OriginalType)
				rec.Broken = false
				rec.RemainingTicks = rec.GenerationTicks
				st.Restored++
			} else {
				// The record is authoritative: if the cell stopped
				// showing the placeholder (a failed earlier mutation, or
				// a restart that rebuilt the chunk from the generator),
				// put it back.
				if e.world.BlockType(rec.Dim, *rec.Pos) != rec.PlaceholderType {
					e.placeBlock(&rec, rec.PlaceholderType)
				}
				st.Counting++
			}
			e.store.Set(key, &rec)

		default:
			// Armed and idle, waiting for a break event.
			st.Idle++
		}
	}
	return st
}

func (e *Engine) placeBlock(rec *Record, blockType string) {
	if err := e.world.SetBlockType(rec.Dim, *rec.Pos, blockType); err != nil {
		e.log.Printf("set %s at %v dim=%s: %v", blockType, *rec.Pos, rec.Dim, err)
	}
}
