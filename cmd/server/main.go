package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitlyte-ai/apples2oranges-sub000/internal/config"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/engine"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/router"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/source"
	"github.com/bitlyte-ai/apples2oranges-sub000/internal/ws"
)

func main() {
	demoMode := flag.Bool("demo", false, "Generate synthetic two-model telemetry instead of connecting to the harness")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	harnessURL := flag.String("harness", "", "Override harness WebSocket URL")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *harnessURL != "" {
		cfg.Harness.URL = *harnessURL
	}

	eng := engine.NewEngine()

	refresh := cfg.Chart.RefreshInterval
	if cfg.Chart.RenderOnce {
		// Render-once mode: no periodic snapshot push; consumers fetch
		// /api/timeline after a session_ended message.
		refresh = 0
	}
	broadcaster := ws.NewBroadcaster(eng, cfg.Chart.BroadcastThrottle, refresh)
	rtr := router.NewRouter(eng, broadcaster)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var harness *source.Client
	if *demoMode {
		log.Println("Starting in demo mode (synthetic telemetry)")
		gen := source.NewGenerator(rtr, cfg.Sampler.Interval)
		gen.Start(ctx)
	} else {
		log.Printf("Subscribing to harness at %s", cfg.Harness.URL)
		harness = source.NewClient(cfg.Harness, rtr)
		go harness.Start(ctx)
	}

	server := ws.NewServer(eng, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		if harness != nil {
			harness.Close()
		}
		time.Sleep(100 * time.Millisecond)
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
