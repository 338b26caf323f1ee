// Package ws is the websocket agent endpoint: one connection per agent,
// HELLO/WELCOME handshake, then ACT in and EVENT out.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"blockregen.dev/internal/protocol"
	"blockregen.dev/internal/sim/world"
)

const outQueueSize = 16

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(conn)
		if agentID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != "" && act.ProtocolVersion != protocol.Version {
				continue
			}
			s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Act: act}
		}

		// Cleanup.
		s.world.Leave() <- agentID
	}
}

func (s *Server) handshake(conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, "malformed HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		s.reject(conn, "unsupported protocol_version")
		return "", nil
	}
	if hello.AgentID == "" {
		hello.AgentID = "agent"
	}

	out = make(chan []byte, outQueueSize)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name: hello.AgentID,
		Out:  out,
		Resp: respCh,
	}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.AgentID
		return "", nil
	}
	return resp.Welcome.AgentID, out
}

// reject sends a protocol-level ERROR then closes the connection.
func (s *Server) reject(conn *websocket.Conn, message string) {
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:    protocol.TypeError,
		Code:    protocol.ErrProtoBadRequest,
		Message: message,
	})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
