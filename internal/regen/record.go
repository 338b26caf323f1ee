package regen

import "blockregen.dev/internal/cellid"

const (
	// RecordKeyPrefix namespaces regeneration records in the store. The
	// per-tick scan visits exactly the keys carrying this prefix.
	RecordKeyPrefix = "regen.block."

	// ConfigKey holds the arming configuration singleton. It must not
	// share the record prefix or the scan would eat it.
	ConfigKey = "regen.config"
)

// RecordKey returns the store key for the cell at pos. The key is
// derived from the position alone, so at most one record can exist per
// cell identifier.
func RecordKey(pos [3]int) string {
	return RecordKeyPrefix + cellid.EncodePos(pos)
}

// Record is the persisted state of one armed cell.
//
// Pos is a pointer so that a stored record missing its position decodes
// as structurally invalid instead of as the origin cell.
type Record struct {
	Pos             *[3]int `json:"pos,omitempty"`
	Dim             string  `json:"dim,omitempty"`
	OriginalType    string  `json:"original_type,omitempty"`
	PlaceholderType string  `json:"placeholder_type,omitempty"`
	RemainingTicks  int     `json:"remaining_ticks"`
	GenerationTicks int     `json:"generation_ticks"`
	Initialized     bool    `json:"initialized"`
	Broken          bool    `json:"broken"`
}

// Valid reports structural validity: position and both block types
// present. The scan deletes invalid records on sight. A missing
// dimension is not structural damage; it only makes the block mutation
// fail, which is retried like any other mutation failure.
func (r *Record) Valid() bool {
	return r.Pos != nil && r.OriginalType != "" && r.PlaceholderType != ""
}
