package regen

// Actor is the acting player as the break and use handlers see it.
type Actor struct {
	ID       string
	Elevated bool
	HeldItem string
}

// Decision is the explicit outcome of the cancelable break phase.
type Decision struct {
	Allow  bool
	Reason string // set when vetoed, for the actor
}

// PreCheck runs in the cancelable phase of a break. A placeholder that
// is still counting down may not be destroyed; everything else, record
// or not, is allowed through.
func (e *Engine) PreCheck(pos [3]int) Decision {
	var rec Record
	if !e.store.Get(RecordKey(pos), &rec) || !rec.Valid() {
		return Decision{Allow: true}
	}
	if rec.Broken && rec.RemainingTicks > 0 {
		return Decision{Allow: false, Reason: "block is regenerating"}
	}
	return Decision{Allow: true}
}

// BreakKind classifies what PostCommit did.
type BreakKind int

const (
	// BreakNoRecord: the broken cell had no regeneration record.
	BreakNoRecord BreakKind = iota
	// BreakDetached: elevated actor, record deleted, cell released.
	BreakDetached
	// BreakCountdown: placeholder placed, countdown started.
	BreakCountdown
)

// BreakOutcome carries PostCommit's result for the host to report.
type BreakOutcome struct {
	Kind  BreakKind
	Ticks int // countdown length when Kind is BreakCountdown
}

// PostCommit runs after an allowed removal actually happened. Elevated
// actors detach regeneration from the cell entirely; for everyone else
// the placeholder goes in and the countdown restarts from the record's
// configured duration.
func (e *Engine) PostCommit(actor Actor, pos [3]int) BreakOutcome {
	key := RecordKey(pos)
	var rec Record
	if !e.store.Get(key, &rec) || !rec.Valid() {
		return BreakOutcome{Kind: BreakNoRecord}
	}
	if actor.Elevated {
		e.store.Remove(key)
		return BreakOutcome{Kind: BreakDetached}
	}
	e.placeBlock(&rec, rec.PlaceholderType)
	rec.Broken = true
	// Breaking a record the scan never initialized counts as its
	// initialization; placing the original now would undo the break.
	rec.Initialized = true
	rec.RemainingTicks = rec.GenerationTicks
	e.store.Set(key, &rec)
	return BreakOutcome{Kind: BreakCountdown, Ticks: rec.GenerationTicks}
}
