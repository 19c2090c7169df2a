// attendd is the live attendance collection service: a websocket gateway
// over per-lecture rooms with a rotating proof-of-presence token, backed
// by SQLite.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/app"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	// .env is a development convenience; absence is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %s, shutting down", sig)
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
