package world

import (
	"context"
	"encoding/json"
	"time"

	"blockregen.dev/internal/protocol"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server loop. Intended for deterministic tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

// step applies one tick: leaves, then joins, then actions in arrival
// order, then the regeneration scan, then the per-agent event flush.
func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	tick := w.tick.Load()

	var recJoins []RecordedJoin
	var recActions []RecordedAction

	for _, id := range leaves {
		delete(w.agents, id)
		delete(w.clients, id)
	}

	for _, req := range joins {
		a := &Agent{
			ID:       w.newAgentID(),
			Name:     req.Name,
			HeldItem: "hand",
			Elevated: w.isElevated(req.Name),
		}
		w.agents[a.ID] = a
		w.clients[a.ID] = &clientState{Out: req.Out}
		recJoins = append(recJoins, RecordedJoin{AgentID: a.ID, Name: req.Name})
		req.Resp <- JoinResponse{Welcome: w.welcomeFor(a)}
	}

	for _, env := range actions {
		if w.agents[env.AgentID] == nil {
			continue
		}
		w.applyAct(tick, env.AgentID, env.Act)
		recActions = append(recActions, RecordedAction{AgentID: env.AgentID, Act: env.Act})
	}

	stats := w.engine.Tick()

	w.flushEvents(tick)

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:    tick,
			Joins:   recJoins,
			Leaves:  leaves,
			Actions: recActions,
			Engine:  stats,
		}
		if err := w.tickLogger.WriteTick(entry); err != nil && w.log != nil {
			w.log.Printf("tick log: %v", err)
		}
	}

	w.metricsMu.Lock()
	w.metrics = Metrics{
		Tick:         tick,
		Agents:       len(w.agents),
		Clients:      len(w.clients),
		LoadedChunks: w.chunks.LoadedChunks(),
		InboxDepth:   len(w.inbox),
		Engine:       stats,
	}
	w.metricsMu.Unlock()

	w.tick.Add(1)
}

func (w *World) flushEvents(tick uint64) {
	for id, a := range w.agents {
		if len(a.events) == 0 {
			continue
		}
		c := w.clients[id]
		if c == nil {
			a.events = nil
			continue
		}
		msg := protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Events:          a.events,
		}
		b, err := json.Marshal(msg)
		if err != nil {
			if w.log != nil {
				w.log.Printf("marshal events for %s: %v", id, err)
			}
			a.events = nil
			continue
		}
		sendLatest(c.Out, b)
		a.events = nil
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
