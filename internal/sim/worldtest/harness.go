// Package worldtest is a black-box harness for driving a world through
// its exported channels and StepOnce, plus the end-to-end regeneration
// scenarios built on it.
package worldtest

import (
	"encoding/json"
	"testing"

	"blockregen.dev/internal/kvstore"
	"blockregen.dev/internal/protocol"
	"blockregen.dev/internal/sim/catalogs"
	world "blockregen.dev/internal/sim/world"
)

// Harness drives a world deterministically: Join issues a JoinRequest
// via StepOnce, the verb helpers issue single ACTs, and per-agent Out
// channels carry the EVENT JSON back in.
type Harness struct {
	T     *testing.T
	Cats  *catalogs.Catalogs
	Store *kvstore.Store
	W     *world.World

	DefaultAgentID string

	sessions map[string]*session
}

type session struct {
	AgentID string
	Out     chan []byte
	events  []protocol.Event
}

func DefaultConfig() world.Config {
	return world.Config{
		ID:             "w1",
		Dimension:      "overworld",
		TickRateHz:     5,
		Height:         8,
		BoundaryR:      32,
		Seed:           1,
		TriggerItem:    "regen_wand",
		ElevatedAgents: []string{"warden"},
	}
}

func FixtureCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.FromDefs(
		[]catalogs.BlockDef{
			{ID: "air"},
			{ID: "bedrock", Solid: true},
			{ID: "stone", Solid: true, Breakable: true},
			{ID: "dirt", Solid: true, Breakable: true},
			{ID: "grass", Solid: true, Breakable: true},
			{ID: "sand", Solid: true, Breakable: true},
			{ID: "iron_ore", Solid: true, Breakable: true},
			{ID: "mossy_stone", Solid: true, Breakable: true},
			{ID: "cracked_stone", Solid: true, Breakable: true},
		},
		[]catalogs.ItemDef{
			{ID: "hand", Kind: catalogs.KindTool},
			{ID: "pickaxe", Kind: catalogs.KindTool},
			{ID: "regen_wand", Kind: catalogs.KindTrigger},
			{ID: "stone_item", Kind: catalogs.KindBlock, PlaceAs: "stone"},
		},
	)
	if err != nil {
		t.Fatalf("fixture catalogs: %v", err)
	}
	return c
}

func NewHarness(t *testing.T, agentName string) *Harness {
	t.Helper()
	return NewHarnessWithStore(t, kvstore.New(kvstore.NewMemory(), nil), agentName)
}

// NewHarnessWithStore builds a harness over an existing store, so tests
// can restart the world and watch the persisted records keep driving.
func NewHarnessWithStore(t *testing.T, store *kvstore.Store, agentName string) *Harness {
	t.Helper()

	cats := FixtureCatalogs(t)
	w, err := world.New(DefaultConfig(), cats, store, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		Store:    store,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultAgentID = h.Join(agentName)
	return h
}

func (h *Harness) Join(agentName string) string {
	h.T.Helper()

	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{
		Name: agentName,
		Out:  out,
		Resp: resp,
	}}, nil, nil)
	jr := <-resp
	if jr.Welcome.AgentID == "" {
		h.T.Fatalf("join returned empty agent id")
	}
	s := &session{AgentID: jr.Welcome.AgentID, Out: out}
	h.sessions[s.AgentID] = s
	h.drainAll()
	return s.AgentID
}

func (h *Harness) Act(act protocol.ActMsg) { h.ActFor(h.DefaultAgentID, act) }

func (h *Harness) ActFor(agentID string, act protocol.ActMsg) {
	h.T.Helper()
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version
	h.clearEventsFor(agentID)
	h.W.StepOnce(nil, nil, []world.ActionEnvelope{{AgentID: agentID, Act: act}})
	h.drainAll()
}

func (h *Harness) Break(pos [3]int) { h.BreakFor(h.DefaultAgentID, pos) }

func (h *Harness) BreakFor(agentID string, pos [3]int) {
	h.T.Helper()
	p := pos
	h.ActFor(agentID, protocol.ActMsg{ActID: "t-break", Verb: protocol.VerbBreak, Pos: &p})
}

func (h *Harness) Use(pos [3]int) { h.UseFor(h.DefaultAgentID, pos) }

func (h *Harness) UseFor(agentID string, pos [3]int) {
	h.T.Helper()
	p := pos
	h.ActFor(agentID, protocol.ActMsg{ActID: "t-use", Verb: protocol.VerbUse, Pos: &p})
}

func (h *Harness) Hold(item string) { h.HoldFor(h.DefaultAgentID, item) }

func (h *Harness) HoldFor(agentID, item string) {
	h.T.Helper()
	h.ActFor(agentID, protocol.ActMsg{ActID: "t-hold", Verb: protocol.VerbHold, Item: item})
}

func (h *Harness) Place(pos [3]int, blockType string) {
	h.T.Helper()
	p := pos
	h.Act(protocol.ActMsg{ActID: "t-place", Verb: protocol.VerbPlace, Pos: &p, BlockType: blockType})
}

func (h *Harness) Configure(ticks, blockType, placeholderType string) {
	h.T.Helper()
	h.Act(protocol.ActMsg{
		ActID:           "t-config",
		Verb:            protocol.VerbConfigure,
		GenerationTicks: ticks,
		BlockType:       blockType,
		PlaceholderType: placeholderType,
	})
}

func (h *Harness) StepNoop() {
	h.T.Helper()
	h.W.StepOnce(nil, nil, nil)
	h.drainAll()
}

func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.StepNoop()
	}
}

// BlockAt reads back the cell via the same accessor the engine uses;
// "" means air.
func (h *Harness) BlockAt(pos [3]int) string {
	return h.W.BlockType(h.W.Dimension(), pos)
}

// LastResult returns the most recent ACTION_RESULT seen by the default
// agent since its last act.
func (h *Harness) LastResult() (ok bool, code string) {
	return h.LastResultFor(h.DefaultAgentID)
}

func (h *Harness) LastResultFor(agentID string) (ok bool, code string) {
	h.T.Helper()
	s := h.mustSession(agentID)
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ev["kind"] != protocol.KindActionResult {
			continue
		}
		ok, _ = ev["ok"].(bool)
		code, _ = ev["code"].(string)
		return ok, code
	}
	h.T.Fatalf("no ACTION_RESULT for %s", agentID)
	return false, ""
}

// Notices returns the NOTICE texts the default agent accumulated since
// its last act.
func (h *Harness) Notices() []string {
	s := h.mustSession(h.DefaultAgentID)
	var out []string
	for _, ev := range s.events {
		if ev["kind"] == protocol.KindNotice {
			if text, _ := ev["text"].(string); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}

func (h *Harness) mustSession(agentID string) *session {
	h.T.Helper()
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s
}

func (h *Harness) clearEventsFor(agentID string) {
	if s := h.sessions[agentID]; s != nil {
		s.events = nil
	}
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				var msg protocol.EventMsg
				if err := json.Unmarshal(b, &msg); err != nil {
					h.T.Fatalf("unmarshal EVENT: %v", err)
				}
				s.events = append(s.events, msg.Events...)
				continue
			default:
			}
			break
		}
	}
}
