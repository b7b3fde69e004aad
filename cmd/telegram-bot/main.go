package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/database"
	"ai-trip-planner/internal/export"
	"ai-trip-planner/internal/geo"
	"ai-trip-planner/internal/llm"
	"ai-trip-planner/internal/metrics"
	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/social"
	"ai-trip-planner/internal/storage"
	"ai-trip-planner/internal/telegram"
	"ai-trip-planner/internal/verify"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required for the bot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	repo := planner.NewSessionRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	var source social.Source = social.NewMockSource()
	if cfg.SocialAPIURL != "" {
		source = social.NewFallbackSource(social.NewContentClient(cfg), social.NewMockSource())
	}

	var textGen llm.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
		defer gemini.Close()
		textGen = gemini
	}

	verifier := verify.NewVerifier(textGen, source)
	verifier.Concurrency = cfg.VerifyConcurrency
	verifier.Timeout = cfg.VerifyTimeout

	artifacts, err := storage.NewArtifactStore(cfg.OutputsDir)
	if err != nil {
		log.Fatalf("Failed to initialize artifact store: %v", err)
	}

	orchestrator := planner.NewOrchestrator(
		repo, source, geo.NewCityGeocoder(), verifier, export.NewExporter(artifacts), metricsStore)
	runner := planner.NewRunner(orchestrator)

	bot, err := telegram.NewBot(cfg, repo, runner, metricsStore)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down bot...")
		cancel()
	}()

	log.Println("Telegram bot polling for updates")
	bot.Run(ctx)
	runner.Shutdown()
	log.Println("Bot exiting")
}
