package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"blockregen.dev/internal/kvstore"
	"blockregen.dev/internal/protocol"
	"blockregen.dev/internal/regen"
	"blockregen.dev/internal/sim/catalogs"
)

type Config struct {
	ID         string
	Dimension  string
	TickRateHz int
	Height     int
	BoundaryR  int
	Seed       int64

	TriggerItem    string
	ElevatedAgents []string
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

// World is a single-threaded authoritative simulation hosting the
// regeneration engine. All state must be accessed only from the world
// loop goroutine; the engine's callbacks into the world happen on that
// same goroutine.
type World struct {
	cfg      Config
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	chunks *ChunkStore
	store  *kvstore.Store
	engine *regen.Engine

	agents  map[string]*Agent
	clients map[string]*clientState

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/audit.
	tickLogger  TickLogger
	auditLogger AuditLogger

	log *log.Logger

	// Read by the metrics endpoint off-thread.
	metricsMu sync.Mutex
	metrics   Metrics
}

type Agent struct {
	ID       string
	Name     string
	HeldItem string
	Elevated bool

	events []protocol.Event
}

func (a *Agent) AddEvent(ev protocol.Event) {
	a.events = append(a.events, ev)
}

type clientState struct {
	Out chan []byte
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Engine  regen.Stats      `json:"engine"`
}

type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Actor  string `json:"actor"`
	Action string `json:"action"` // e.g. "SET_BLOCK"
	Dim    string `json:"dim"`
	Pos    [3]int `json:"pos"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// Metrics is the snapshot the HTTP metrics endpoint exposes.
type Metrics struct {
	Tick         uint64
	Agents       int
	Clients      int
	LoadedChunks int
	InboxDepth   int
	Engine       regen.Stats
}

func New(cfg Config, cats *catalogs.Catalogs, store *kvstore.Store, logger *log.Logger) (*World, error) {
	if cfg.Dimension == "" {
		return nil, fmt.Errorf("world: dimension must be set")
	}
	if cfg.Height <= 0 {
		return nil, fmt.Errorf("world: height must be positive")
	}

	b := func(id string) (uint16, error) {
		v, ok := cats.Blocks.Index[id]
		if !ok {
			return 0, fmt.Errorf("missing block id in palette: %s", id)
		}
		return v, nil
	}
	var gen WorldGen
	var err error
	gen.Seed = cfg.Seed
	gen.Height = cfg.Height
	gen.BoundaryR = cfg.BoundaryR
	if gen.Air, err = b(catalogs.AirBlock); err != nil {
		return nil, err
	}
	if gen.Bedrock, err = b("bedrock"); err != nil {
		return nil, err
	}
	if gen.Stone, err = b("stone"); err != nil {
		return nil, err
	}
	if gen.Dirt, err = b("dirt"); err != nil {
		return nil, err
	}
	if gen.Grass, err = b("grass"); err != nil {
		return nil, err
	}
	if gen.Sand, err = b("sand"); err != nil {
		return nil, err
	}
	if gen.IronOre, err = b("iron_ore"); err != nil {
		return nil, err
	}

	w := &World{
		cfg:      cfg,
		catalogs: cats,
		chunks:   NewChunkStore(gen),
		store:    store,
		agents:   map[string]*Agent{},
		clients:  map[string]*clientState{},
		inbox:    make(chan ActionEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		stop:     make(chan struct{}),
		log:      logger,
	}
	w.engine = regen.NewEngine(store, w, cfg.TriggerItem, logger)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)   { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) ID() string          { return w.cfg.ID }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }
func (w *World) Dimension() string   { return w.cfg.Dimension }

// Engine exposes the regeneration engine for admin surfaces and
// offline tooling. Off-loop callers may only use the store-backed
// reads (LoadConfig and friends), which the store's backend locking
// makes safe; the mutating paths stay on the loop goroutine.
func (w *World) Engine() *regen.Engine { return w.engine }

// Metrics returns the latest per-tick snapshot. Safe to call from any
// goroutine.
func (w *World) Metrics() Metrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

func (w *World) isElevated(name string) bool {
	for _, n := range w.cfg.ElevatedAgents {
		if n == name {
			return true
		}
	}
	return false
}

func (w *World) newAgentID() string {
	n := w.nextAgentNum.Add(1)
	return fmt.Sprintf("A%06d", n)
}

func (w *World) welcomeFor(a *Agent) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         a.ID,
		WorldID:         w.cfg.ID,
		Dimension:       w.cfg.Dimension,
		Tick:            w.tick.Load(),
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			Height:     w.cfg.Height,
			BoundaryR:  w.cfg.BoundaryR,
			Seed:       w.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			Blocks: protocol.DigestRef{
				Digest: w.catalogs.Blocks.DefsDigest,
				Count:  len(w.catalogs.Blocks.Defs),
			},
			Items: protocol.DigestRef{
				Digest: w.catalogs.Items.DefsDigest,
				Count:  len(w.catalogs.Items.Defs),
			},
		},
		Elevated:    a.Elevated,
		HeldItem:    a.HeldItem,
		TriggerItem: w.cfg.TriggerItem,
	}
}
