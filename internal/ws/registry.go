package ws

import (
	"log"
	"sync"
)

// Registry tracks live connections and their per-lecture room membership.
// It implements interfaces.Broadcaster for the collector. Broadcasts to a
// room are delivered in emission order per connection; there is no
// cross-lecture ordering.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection            // connID -> connection
	rooms map[string]map[string]*Connection // lectureID -> connID -> connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Add tracks a freshly authenticated connection.
func (r *Registry) Add(conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	r.conns[conn.ID()] = conn
	r.mu.Unlock()
}

// JoinRoom subscribes a connection to a lecture's broadcast group.
// Joining twice is a no-op.
func (r *Registry) JoinRoom(lectureID string, conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[lectureID] == nil {
		r.rooms[lectureID] = make(map[string]*Connection)
	}
	r.rooms[lectureID][conn.ID()] = conn
}

// Remove drops a connection from the registry and every room it joined.
// Idempotent.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, conn.ID())
	for lectureID, room := range r.rooms {
		delete(room, conn.ID())
		if len(room) == 0 {
			delete(r.rooms, lectureID)
		}
	}
}

// Broadcast delivers an event to every member of a lecture's room.
// Per-connection write failures are logged and skipped; one slow client
// never blocks the rest of the room.
func (r *Registry) Broadcast(lectureID, event string, payload interface{}) {
	r.mu.RLock()
	members := make([]*Connection, 0, len(r.rooms[lectureID]))
	for _, conn := range r.rooms[lectureID] {
		members = append(members, conn)
	}
	r.mu.RUnlock()

	for _, conn := range members {
		if err := conn.WriteEvent(event, payload); err != nil {
			log.Printf("Broadcast delivery failed: lecture=%s event=%s conn=%s: %v",
				lectureID, event, conn.ID(), err)
		}
	}
}

// Stats reports connection and room counts for the health surface.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"connections": len(r.conns),
		"rooms":       len(r.rooms),
	}
}
