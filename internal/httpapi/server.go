// Package httpapi exposes the service's small HTTP surface: the websocket
// mount, a health endpoint and a read-only view of live sessions.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/collector"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/ws"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/interfaces"
)

// Server is a thin HTTP layer; all business logic stays in the collector.
type Server struct {
	store     interfaces.AttendanceStore
	collector *collector.Manager
	registry  *ws.Registry
	gateway   *ws.Gateway
	router    *http.ServeMux
}

// NewServer wires the routes.
func NewServer(store interfaces.AttendanceStore, manager *collector.Manager, registry *ws.Registry, gateway *ws.Gateway) *Server {
	s := &Server{
		store:     store,
		collector: manager,
		registry:  registry,
		gateway:   gateway,
		router:    http.NewServeMux(),
	}
	s.router.HandleFunc("/ws", s.gateway.HandleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/api/live", s.handleLive)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := s.store.HealthCheck(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.sendJSON(w, code, map[string]interface{}{
		"status":    status,
		"transport": s.registry.Stats(),
		"timestamp": time.Now(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"lectures": s.collector.ActiveLectures(),
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, map[string]string{"error": message})
}
