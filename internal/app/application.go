// Package app wires the service components in dependency order and owns
// startup and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/auth"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/collector"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/config"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/database"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/httpapi"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/iptrack"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/ws"
	dbconfig "github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/database"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Application bundles the wired components. In-flight sessions are
// in-memory only; shutdown closes the transport and the store and lets
// them go.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	registry   *ws.Registry
	collector  *collector.Manager
	httpServer *http.Server
}

// NewApplication initializes components in dependency order:
// database -> settings -> tracker -> registry -> collector -> gateway -> HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(&dbconfig.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	fallback := types.SessionTimings{
		Cadence:          cfg.Attendance.Cadence,
		LeewayMultiplier: cfg.Attendance.LeewayMultiplier,
		Timeout:          cfg.Attendance.SessionTimeout,
	}
	settings := database.NewSettingsProvider(dbManager, fallback)

	tracker := iptrack.NewTracker()
	registry := ws.NewRegistry()
	manager := collector.NewManager(dbManager, settings, registry, tracker)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	gateway := ws.NewGateway(registry, verifier, manager)
	apiServer := httpapi.NewServer(dbManager, manager, registry, gateway)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		registry:   registry,
		collector:  manager,
		httpServer: httpServer,
	}, nil
}

// Start serves HTTP until the context is canceled or the server fails.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting attendance service on %s", app.httpServer.Addr)

	serverErr := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		return app.Shutdown()
	}
}

// Shutdown stops accepting connections, then closes the store.
func (app *Application) Shutdown() error {
	log.Println("Shutting down attendance service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	if err := app.dbManager.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("Shutdown complete")
	return nil
}
