package protocol

// Action verbs an agent may send in an ACT message.
const (
	VerbBreak     = "BREAK"
	VerbPlace     = "PLACE"
	VerbUse       = "USE"
	VerbHold      = "HOLD"
	VerbConfigure = "CONFIGURE"
)

// Event kinds the server emits in EVENT messages.
const (
	KindActionResult = "ACTION_RESULT"
	KindBlockChange  = "BLOCK_CHANGE"
	KindNotice       = "NOTICE"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentID         string `json:"agent_id"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	AgentID         string         `json:"agent_id"`
	WorldID         string         `json:"world_id"`
	Dimension       string         `json:"dimension"`
	Tick            uint64         `json:"tick"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
	Elevated        bool           `json:"elevated,omitempty"`
	HeldItem        string         `json:"held_item"`
	TriggerItem     string         `json:"trigger_item"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	Height     int   `json:"height"`
	BoundaryR  int   `json:"boundary_r"`
	Seed       int64 `json:"seed"`
}

type CatalogDigests struct {
	Blocks DigestRef `json:"blocks"`
	Items  DigestRef `json:"items"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ACT (client -> server). One verb per message; the fields a verb does
// not use stay empty. CONFIGURE carries its three fields as raw strings
// because the configuration surface, not the transport, validates them.
type ActMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version,omitempty"`
	ActID           string  `json:"act_id,omitempty"`
	Verb            string  `json:"verb"`
	Pos             *[3]int `json:"pos,omitempty"`
	BlockType       string  `json:"block_type,omitempty"`
	Item            string  `json:"item,omitempty"`
	GenerationTicks string  `json:"generation_ticks,omitempty"`
	PlaceholderType string  `json:"placeholder_type,omitempty"`
}

// Event is one entry in an EVENT message: a "kind" plus kind-specific
// fields.
type Event map[string]any

// EVENT (server -> client): the per-tick batch for one agent.
type EventMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version,omitempty"`
	Tick            uint64  `json:"tick"`
	Events          []Event `json:"events,omitempty"`
}

// ERROR (server -> client), for transport-level failures outside any
// particular act.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
