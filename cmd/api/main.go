// FitStack Disputes Microservice
//
// This is the main entry point for the chargeback service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitstack/fitstack-disputes/config"
	"github.com/fitstack/fitstack-disputes/internal/api"
	"github.com/fitstack/fitstack-disputes/internal/app"
)

func main() {
	log.Println("Starting FitStack Disputes Service...")

	// Load configuration
	cfg := config.Load()
	log.Printf("Configuration loaded: Port=%s, PayrixEnv=%s, ActionLog=%s",
		cfg.Server.Port, cfg.Payrix.Environment, cfg.Store.Backend)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Webhook.Secret == "" {
		log.Println("Warning: WEBHOOK_SECRET not set, webhooks are not authenticated")
	}

	ctx := context.Background()

	// Wire up dependencies (manual dependency injection)
	deps, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}
	defer deps.Close()

	// API Layer
	handler := api.NewHandler(deps.Service)
	router := api.SetupRouter(handler, cfg.Server.GinMode, deps.Webhooks)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
