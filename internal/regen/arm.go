package regen

import "errors"

var (
	// ErrAlreadyArmed means the cell already has a record. Arming
	// refuses and leaves the existing record, including its live
	// countdown, untouched.
	ErrAlreadyArmed = errors.New("cell already has a regeneration record")
	// ErrMissingTrigger means the actor used something other than the
	// trigger item.
	ErrMissingTrigger = errors.New("trigger item not held")
	// ErrEmptyCell means the target cell holds no block to arm.
	ErrEmptyCell = errors.New("target cell is empty")
)

// Arm creates the regeneration record for the cell at pos from the
// caller's freshly loaded configuration. The record starts
// uninitialized; the next scan pass places the original block.
func (e *Engine) Arm(cfg GlobalConfig, dim string, pos [3]int) error {
	if cfg.GenerationTicks <= 0 || cfg.BlockType == "" || cfg.PlaceholderType == "" {
		return ErrNotConfigured
	}
	key := RecordKey(pos)
	if e.store.Has(key) {
		return ErrAlreadyArmed
	}
	p := pos
	rec := Record{
		Pos:             &p,
		Dim:             dim,
		OriginalType:    cfg.BlockType,
		PlaceholderType: cfg.PlaceholderType,
		RemainingTicks:  cfg.GenerationTicks,
		GenerationTicks: cfg.GenerationTicks,
	}
	if !e.store.Set(key, &rec) {
		return ErrStoreWrite
	}
	return nil
}

// HandleUse reacts to the trigger interaction: using the trigger item
// on a non-empty cell arms that cell with the stored configuration.
func (e *Engine) HandleUse(actor Actor, dim string, pos [3]int) error {
	if actor.HeldItem != e.triggerItem {
		return ErrMissingTrigger
	}
	if e.world.BlockType(dim, pos) == "" {
		return ErrEmptyCell
	}
	cfg, ok := e.LoadConfig()
	if !ok {
		return ErrNotConfigured
	}
	return e.Arm(cfg, dim, pos)
}
