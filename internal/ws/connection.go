// Package ws is the realtime transport gateway: it authenticates incoming
// websocket connections, scopes them to per-lecture broadcast rooms and
// relays events between clients and the attendance collector.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/auth"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

const (
	writeTimeout = 5 * time.Second
	writeBuffer  = 100
)

// Connection wraps one authenticated websocket client. All writes funnel
// through a single writer goroutine so concurrent broadcasts never race on
// the underlying socket.
type Connection struct {
	id        string
	conn      *websocket.Conn
	claims    *auth.Claims
	address   string
	userAgent string

	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu            sync.Mutex
	lastHeartbeat time.Time
}

// NewConnection wraps an upgraded socket and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, claims *auth.Claims, address, userAgent string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:        uuid.New().String(),
		conn:      conn,
		claims:    claims,
		address:   address,
		userAgent: userAgent,
		writeCh:   make(chan []byte, writeBuffer),
		ctx:       ctx,
		cancel:    cancel,
	}
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteEvent queues one enveloped event for delivery. A full buffer or a
// closed connection drops the frame rather than blocking the caller.
func (c *Connection) WriteEvent(event string, payload interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return ErrInvalidJSON
		}
		data = raw
	}
	frame, err := json.Marshal(types.Envelope{Event: event, Data: data})
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- frame:
		return nil
	default:
		return ErrWriteBufferFull
	}
}

// Close shuts the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// ID returns the connection's server-side identity used for timer
// ownership registration.
func (c *Connection) ID() string { return c.id }

// Claims returns the verified caller identity.
func (c *Connection) Claims() *auth.Claims { return c.claims }

// Address returns the caller's network address as seen at connect time.
func (c *Connection) Address() string { return c.address }

// UserAgent returns the caller's user agent string.
func (c *Connection) UserAgent() string { return c.userAgent }

// TouchHeartbeat records a pong echo time.
func (c *Connection) TouchHeartbeat(t time.Time) {
	c.mu.Lock()
	c.lastHeartbeat = t
	c.mu.Unlock()
}

// LastHeartbeat returns the most recent pong echo time.
func (c *Connection) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}
