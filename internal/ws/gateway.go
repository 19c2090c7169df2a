package ws

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/auth"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/collector"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the fronting proxy.
		return true
	},
}

// Gateway upgrades, authenticates and dispatches websocket traffic.
type Gateway struct {
	registry  *Registry
	verifier  *auth.Verifier
	collector *collector.Manager
}

// NewGateway creates a gateway wired to the registry and collector.
func NewGateway(registry *Registry, verifier *auth.Verifier, manager *collector.Manager) *Gateway {
	return &Gateway{
		registry:  registry,
		verifier:  verifier,
		collector: manager,
	}
}

// HandleWebSocket authenticates the handshake, upgrades the connection and
// runs its read loop. Unauthenticated connections are rejected before the
// upgrade; no event is processed without a verified identity.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := auth.BearerFromHeader(r.Header.Get("Authorization"))
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	claims, err := g.verifier.Verify(raw)
	if err != nil {
		log.Printf("Handshake rejected: addr=%s: %v", clientAddress(r), err)
		http.Error(w, "invalid or missing bearer token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	conn := NewConnection(wsConn, claims, clientAddress(r), r.UserAgent())
	g.registry.Add(conn)
	log.Printf("Connection opened: conn=%s user=%s role=%s addr=%s", conn.ID(), claims.UserID, claims.Role, conn.Address())

	go g.readLoop(conn)
}

// readLoop processes inbound events until the socket drops, then runs the
// disconnect-scoped cleanup: the collector stops the timers this
// connection owned, the registry forgets it, and any sessions it opened
// stay alive for the rest of the room.
func (g *Gateway) readLoop(conn *Connection) {
	defer func() {
		g.collector.HandleDisconnect(conn.ID())
		g.registry.Remove(conn)
		_ = conn.Close()
		log.Printf("Connection closed: conn=%s user=%s", conn.ID(), conn.Claims().UserID)
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: conn=%s: %v", conn.ID(), err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var envelope types.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			g.writeError(conn, collector.CodeInvalidInput, "malformed event frame")
			continue
		}
		g.dispatch(conn, envelope)
	}
}

// dispatch routes one inbound event. Every event ends in either a
// caller-scoped outcome write or a group broadcast; nothing is dropped
// without a log line.
func (g *Gateway) dispatch(conn *Connection, envelope types.Envelope) {
	ctx := context.Background()
	claims := conn.Claims()

	switch envelope.Event {
	case types.EventCreateCollection:
		var payload types.CreateCollectionPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		if !claims.CanManageLecture() {
			log.Printf("Unauthorized create: conn=%s user=%s role=%s", conn.ID(), claims.UserID, claims.Role)
			g.writeError(conn, collector.CodeUnauthorizedRole, "role may not open attendance collection")
			return
		}
		// Subscribe before the session broadcasts so the opener sees them.
		g.registry.JoinRoom(payload.LectureID, conn)
		g.writeOutcome(conn, g.collector.Create(ctx, payload.LectureID, claims.Role, conn.ID()))

	case types.EventStudentArrived:
		var payload types.ArrivalPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		g.registry.JoinRoom(payload.LectureID, conn)
		g.writeOutcome(conn, g.collector.Arrive(ctx, collector.ArrivalRequest{
			LectureID:     payload.LectureID,
			Token:         payload.Token,
			StudentNumber: payload.StudentNumber,
			ClaimedAt:     time.UnixMilli(payload.UnixTimeMS),
			Address:       conn.Address(),
			UserAgent:     conn.UserAgent(),
		}))

	case types.EventManualInsert:
		var payload types.ManualEditPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		g.writeOutcome(conn, g.collector.ManualInsert(ctx, payload.LectureID, payload.StudentNumber, claims.Role))

	case types.EventManualRemove:
		var payload types.ManualEditPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		g.writeOutcome(conn, g.collector.ManualRemove(ctx, payload.LectureID, payload.StudentNumber, claims.Role))

	case types.EventFinishWithButton:
		var payload types.LectureActionPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		g.writeOutcome(conn, g.collector.FinishManual(ctx, payload.LectureID, claims.Role, conn.Address()))

	case types.EventCancelLecture:
		var payload types.LectureActionPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		g.writeOutcome(conn, g.collector.Cancel(ctx, payload.LectureID, claims.Role, conn.Address()))

	case types.EventPong:
		var payload types.PongPayload
		if !g.decode(conn, envelope.Data, &payload) {
			return
		}
		now := time.Now()
		conn.TouchHeartbeat(now)
		log.Printf("Heartbeat echo: lecture=%s conn=%s latency=%dms",
			payload.LectureID, conn.ID(), now.UnixMilli()-payload.UnixTimeMS)

	default:
		log.Printf("Unknown event: conn=%s event=%q", conn.ID(), envelope.Event)
		g.writeError(conn, collector.CodeInvalidInput, "unknown event")
	}
}

// decode unmarshals and validates an event payload, answering the caller
// with invalidInput on failure.
func (g *Gateway) decode(conn *Connection, data json.RawMessage, payload interface{}) bool {
	if len(data) == 0 {
		g.writeError(conn, collector.CodeInvalidInput, "missing event payload")
		return false
	}
	if err := json.Unmarshal(data, payload); err != nil {
		g.writeError(conn, collector.CodeInvalidInput, "malformed event payload")
		return false
	}
	if err := types.ValidatePayload(payload); err != nil {
		g.writeError(conn, collector.CodeInvalidInput, "missing or malformed payload fields")
		return false
	}
	return true
}

func (g *Gateway) writeOutcome(conn *Connection, outcome *collector.Outcome) {
	if outcome == nil {
		return
	}
	if err := conn.WriteEvent(outcome.Event, outcome.Payload); err != nil {
		log.Printf("Outcome delivery failed: conn=%s event=%s: %v", conn.ID(), outcome.Event, err)
	}
}

func (g *Gateway) writeError(conn *Connection, code, message string) {
	if err := conn.WriteEvent(types.EventError, types.ErrorPayload{Code: code, Message: message}); err != nil {
		log.Printf("Error delivery failed: conn=%s code=%s: %v", conn.ID(), code, err)
	}
}

// clientAddress prefers the forwarded address set by the fronting proxy,
// falling back to the socket peer. Shared classroom NAT means one address
// can legitimately serve many students; the tracker flags, never blocks.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
