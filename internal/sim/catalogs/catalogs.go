// Package catalogs loads the block and item definitions the world is
// built from. Palettes are deterministic (sorted, air first) so the
// digests handed out in WELCOME are stable across runs.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// Air is palette id 0 in every world.
	AirBlock = "air"

	// Item kinds.
	KindTool    = "TOOL"
	KindBlock   = "BLOCK"
	KindTrigger = "TRIGGER"
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID        string `json:"id"`
	Solid     bool   `json:"solid"`
	Breakable bool   `json:"breakable"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"` // "TOOL","BLOCK","TRIGGER"
	PlaceAs string `json:"place_as,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromDefs builds catalogs directly from in-memory definitions. Tests
// use this to avoid touching the filesystem.
func FromDefs(blocks []BlockDef, items []ItemDef) (*Catalogs, error) {
	var c Catalogs
	rawB, _ := json.Marshal(blocks)
	if err := buildBlocks(rawB, blocks, &c.Blocks); err != nil {
		return nil, err
	}
	rawI, _ := json.Marshal(items)
	if err := buildItems(rawI, items, &c.Items); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	return buildBlocks(raw, defs, out)
}

func buildBlocks(raw []byte, defs []BlockDef, out *BlockCatalog) error {
	out.DefsDigest = sha256Hex(raw)
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure air exists and is palette id 0.
	if _, ok := out.Defs[AirBlock]; !ok {
		return fmt.Errorf("blocks: missing %q", AirBlock)
	}
	ids = append([]string{AirBlock}, filterOut(ids, AirBlock)...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	return buildItems(raw, defs, out)
}

func buildItems(raw []byte, defs []ItemDef, out *ItemCatalog) error {
	out.DefsDigest = sha256Hex(raw)
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
