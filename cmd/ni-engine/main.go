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

	"NetInventory/internal/aggregator"
	"NetInventory/internal/api"
	"NetInventory/internal/config"
	"NetInventory/internal/ingest"
	"NetInventory/internal/probe"
	"NetInventory/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file; defaults apply when empty.")
	flag.Parse()

	log.Println("Starting ni-engine...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	interval, err := time.ParseDuration(cfg.Ingest.RefreshInterval)
	if err != nil || interval <= 0 {
		log.Fatalf("Invalid refresh_interval %q: %v", cfg.Ingest.RefreshInterval, err)
	}

	if err := os.MkdirAll(cfg.Ingest.SpoolDir, 0o755); err != nil {
		log.Fatalf("Failed to create spool directory: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()
	log.Printf("Inventory store open at %s", cfg.Store.Path)

	agg := aggregator.New(st, cfg.Ingest.FlushThreshold)
	orch := ingest.New(cfg.Ingest.SpoolDir, agg, st,
		ingest.Sources(cfg.Ingest.AppProtocols), cfg.Query.MaxRows, cfg.Query.SummarySize)

	// Optional NATS record transport: remote probes publish record lines,
	// the subscriber spools them through the orchestrator for the next pass.
	if cfg.NATS.URL != "" {
		sub, err := probe.NewSubscriber(cfg.NATS.URL, cfg.NATS.Subject, orch)
		if err != nil {
			log.Printf("NATS subscriber disabled: %v", err)
		} else if err := sub.Start(); err != nil {
			log.Printf("NATS subscriber disabled: %v", err)
			sub.Close()
		} else {
			defer sub.Close()
		}
	}

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: api.NewServer(orch).Router(),
	}
	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Periodic ingestion passes; errors are logged inside RunPass and the
	// offending sources retried next tick.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := orch.RunPass(context.Background()); err != nil {
					log.Printf("Ingestion pass finished with errors: %v", err)
				}
			case <-done:
				return
			}
		}
	}()

	if err := orch.RunPass(context.Background()); err != nil {
		log.Printf("Initial ingestion pass finished with errors: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received...")
	close(done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("API server forced to shutdown: %v", err)
	}

	// Final pass so nothing already spooled is left behind.
	if err := orch.RunPass(context.Background()); err != nil {
		log.Printf("Final ingestion pass finished with errors: %v", err)
	}
	log.Println("Shutdown complete.")
}
