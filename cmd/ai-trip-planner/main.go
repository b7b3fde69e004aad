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

	"github.com/joho/godotenv"

	"ai-trip-planner/internal/api"
	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/database"
	"ai-trip-planner/internal/export"
	"ai-trip-planner/internal/geo"
	"ai-trip-planner/internal/llm"
	"ai-trip-planner/internal/metrics"
	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/social"
	"ai-trip-planner/internal/storage"
	"ai-trip-planner/internal/verify"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo := planner.NewSessionRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	if len(os.Args) > 1 && os.Args[1] == "metrics-cleanup" {
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metricsStore.Cleanup(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		log.Printf("Removed %d old metric records", affected)
		return
	}

	// Content source: live client with the persona catalog as a safety net,
	// or the catalog alone when no upstream is configured.
	var source social.Source = social.NewMockSource()
	if cfg.SocialAPIURL != "" {
		source = social.NewFallbackSource(social.NewContentClient(cfg), social.NewMockSource())
	} else {
		log.Println("SOCIAL_API_URL not set; serving candidates from the built-in catalog")
	}

	// Verification backend is optional. Without it every candidate gets the
	// neutral unverified verdict.
	var textGen llm.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer gemini.Close()
		textGen = gemini
	} else {
		log.Println("GEMINI_API_KEY not set; verification runs in fail-open mode")
	}

	verifier := verify.NewVerifier(textGen, source)
	verifier.Concurrency = cfg.VerifyConcurrency
	verifier.Timeout = cfg.VerifyTimeout

	artifacts, err := storage.NewArtifactStore(cfg.OutputsDir)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}
	exporter := export.NewExporter(artifacts)

	orchestrator := planner.NewOrchestrator(
		repo, source, geo.NewCityGeocoder(), verifier, exporter, metricsStore)
	runner := planner.NewRunner(orchestrator)

	server := api.NewServer(repo, runner, artifacts)
	router := api.SetupRouter(cfg, server)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Trip planner API listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	runner.Shutdown()

	log.Println("Server exiting")
}
