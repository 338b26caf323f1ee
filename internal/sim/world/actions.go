package world

import (
	"errors"
	"fmt"

	"blockregen.dev/internal/protocol"
	"blockregen.dev/internal/regen"
	"blockregen.dev/internal/sim/catalogs"
)

// applyAct handles one agent action. Every act produces exactly one
// ACTION_RESULT event for the actor; world mutations additionally fan
// out BLOCK_CHANGE events to everyone.
func (w *World) applyAct(tick uint64, agentID string, act protocol.ActMsg) {
	a := w.agents[agentID]

	switch act.Verb {
	case protocol.VerbBreak:
		w.actBreak(tick, a, act)
	case protocol.VerbUse:
		w.actUse(tick, a, act)
	case protocol.VerbConfigure:
		w.actConfigure(tick, a, act)
	case protocol.VerbHold:
		w.actHold(tick, a, act)
	case protocol.VerbPlace:
		w.actPlace(tick, a, act)
	default:
		w.deny(a, act, protocol.ErrBadRequest, fmt.Sprintf("unknown verb %q", act.Verb))
	}
}

func (w *World) allow(a *Agent, act protocol.ActMsg) {
	a.AddEvent(protocol.Event{
		"kind": protocol.KindActionResult,
		"ref":  act.ActID,
		"ok":   true,
	})
}

func (w *World) deny(a *Agent, act protocol.ActMsg, code, message string) {
	a.AddEvent(protocol.Event{
		"kind":    protocol.KindActionResult,
		"ref":     act.ActID,
		"ok":      false,
		"code":    code,
		"message": message,
	})
}

func (w *World) notice(a *Agent, text string) {
	a.AddEvent(protocol.Event{
		"kind": protocol.KindNotice,
		"text": text,
	})
}

func (w *World) actBreak(tick uint64, a *Agent, act protocol.ActMsg) {
	if act.Pos == nil {
		w.deny(a, act, protocol.ErrBadRequest, "BREAK requires pos")
		return
	}
	pos := *act.Pos
	name := w.BlockType(w.cfg.Dimension, pos)
	if name == "" {
		w.deny(a, act, protocol.ErrInvalidTarget, "nothing to break")
		return
	}
	if def, ok := w.catalogs.Blocks.Defs[name]; !ok || !def.Breakable {
		w.deny(a, act, protocol.ErrBlocked, fmt.Sprintf("%s cannot be broken", name))
		return
	}

	// Cancelable phase: the engine may veto the removal outright.
	if d := w.engine.PreCheck(pos); !d.Allow {
		w.deny(a, act, protocol.ErrBlocked, d.Reason)
		w.notice(a, d.Reason)
		return
	}

	w.setBlockAs(tick, a.ID, pos, w.chunks.gen.Air, "break")

	// Commit phase: the removal happened, the engine reacts to it.
	out := w.engine.PostCommit(regen.Actor{ID: a.ID, Elevated: a.Elevated, HeldItem: a.HeldItem}, pos)
	w.allow(a, act)
	switch out.Kind {
	case regen.BreakDetached:
		w.notice(a, "regeneration detached from cell")
	case regen.BreakCountdown:
		w.notice(a, fmt.Sprintf("block regenerates in %d ticks", out.Ticks))
	}
}

func (w *World) actUse(tick uint64, a *Agent, act protocol.ActMsg) {
	if act.Pos == nil {
		w.deny(a, act, protocol.ErrBadRequest, "USE requires pos")
		return
	}
	actor := regen.Actor{ID: a.ID, Elevated: a.Elevated, HeldItem: a.HeldItem}
	err := w.engine.HandleUse(actor, w.cfg.Dimension, *act.Pos)
	switch {
	case err == nil:
		w.allow(a, act)
		w.notice(a, "cell armed for regeneration")
	case errors.Is(err, regen.ErrMissingTrigger):
		w.deny(a, act, protocol.ErrBlocked, err.Error())
	case errors.Is(err, regen.ErrEmptyCell):
		w.deny(a, act, protocol.ErrInvalidTarget, err.Error())
	case errors.Is(err, regen.ErrNotConfigured):
		w.deny(a, act, protocol.ErrNotConfigured, err.Error())
	case errors.Is(err, regen.ErrAlreadyArmed):
		w.deny(a, act, protocol.ErrConflict, err.Error())
	case errors.Is(err, regen.ErrStoreWrite):
		w.deny(a, act, protocol.ErrInternal, err.Error())
	default:
		w.deny(a, act, protocol.ErrInternal, err.Error())
	}
}

func (w *World) actConfigure(tick uint64, a *Agent, act protocol.ActMsg) {
	cfg, err := w.engine.Configure(regen.ConfigInput{
		GenerationTicks: act.GenerationTicks,
		BlockType:       act.BlockType,
		PlaceholderType: act.PlaceholderType,
	})
	switch {
	case err == nil:
		w.allow(a, act)
		w.notice(a, fmt.Sprintf("arming configured: %s over %d ticks, placeholder %s",
			cfg.BlockType, cfg.GenerationTicks, cfg.PlaceholderType))
	case errors.Is(err, regen.ErrInvalidConfig):
		w.deny(a, act, protocol.ErrBadRequest, err.Error())
	case errors.Is(err, regen.ErrStoreWrite):
		w.deny(a, act, protocol.ErrInternal, err.Error())
	default:
		w.deny(a, act, protocol.ErrInternal, err.Error())
	}
}

func (w *World) actHold(tick uint64, a *Agent, act protocol.ActMsg) {
	if act.Item == "" {
		w.deny(a, act, protocol.ErrBadRequest, "HOLD requires item")
		return
	}
	if _, ok := w.catalogs.Items.Defs[act.Item]; !ok {
		w.deny(a, act, protocol.ErrBadRequest, fmt.Sprintf("unknown item %q", act.Item))
		return
	}
	a.HeldItem = act.Item
	w.allow(a, act)
}

func (w *World) actPlace(tick uint64, a *Agent, act protocol.ActMsg) {
	if act.Pos == nil || act.BlockType == "" {
		w.deny(a, act, protocol.ErrBadRequest, "PLACE requires pos and block_type")
		return
	}
	id, ok := w.catalogs.Blocks.Index[act.BlockType]
	if !ok || act.BlockType == catalogs.AirBlock {
		w.deny(a, act, protocol.ErrBadRequest, fmt.Sprintf("unknown block %q", act.BlockType))
		return
	}
	pos := *act.Pos
	if !w.chunks.InBounds(pos) {
		w.deny(a, act, protocol.ErrInvalidTarget, "out of bounds")
		return
	}
	if w.BlockType(w.cfg.Dimension, pos) != "" {
		w.deny(a, act, protocol.ErrBlocked, "cell is occupied")
		return
	}
	w.setBlockAs(tick, a.ID, pos, id, "place")
	w.allow(a, act)
}

// BlockType reports the block type id at pos, "" for air, out-of-bounds
// cells, and foreign dimensions.
func (w *World) BlockType(dim string, pos [3]int) string {
	if dim != w.cfg.Dimension {
		return ""
	}
	if !w.chunks.InBounds(pos) {
		return ""
	}
	id := w.chunks.GetBlock(pos)
	if id == w.chunks.gen.Air {
		return ""
	}
	return w.catalogs.Blocks.Palette[id]
}

// SetBlockType is the engine's mutation primitive. Unknown dimensions
// and block types fail so a stale record keeps retrying instead of
// silently corrupting the wrong world.
func (w *World) SetBlockType(dim string, pos [3]int, blockType string) error {
	if dim != w.cfg.Dimension {
		return fmt.Errorf("unknown dimension %q", dim)
	}
	id, ok := w.catalogs.Blocks.Index[blockType]
	if !ok {
		return fmt.Errorf("unknown block type %q", blockType)
	}
	if !w.chunks.InBounds(pos) {
		return fmt.Errorf("position %v out of bounds", pos)
	}
	w.setBlockAs(w.tick.Load(), "engine", pos, id, "regen")
	return nil
}

// setBlockAs mutates one cell, audits the change, and fans out the
// BLOCK_CHANGE event.
func (w *World) setBlockAs(tick uint64, actor string, pos [3]int, to uint16, reason string) {
	from := w.chunks.GetBlock(pos)
	if from == to {
		return
	}
	w.chunks.SetBlock(pos, to)

	if w.auditLogger != nil {
		entry := AuditEntry{
			Tick:   tick,
			Actor:  actor,
			Action: "SET_BLOCK",
			Dim:    w.cfg.Dimension,
			Pos:    pos,
			From:   w.catalogs.Blocks.Palette[from],
			To:     w.catalogs.Blocks.Palette[to],
			Reason: reason,
		}
		if err := w.auditLogger.WriteAudit(entry); err != nil && w.log != nil {
			w.log.Printf("audit log: %v", err)
		}
	}

	ev := protocol.Event{
		"kind":       protocol.KindBlockChange,
		"pos":        pos,
		"block_type": w.catalogs.Blocks.Palette[to],
	}
	for _, a := range w.agents {
		a.AddEvent(ev)
	}
}
