package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/jobtrail/jobtrail-worker/internal/config"
	"github.com/jobtrail/jobtrail-worker/internal/database"
	"github.com/jobtrail/jobtrail-worker/internal/extractor"
	"github.com/jobtrail/jobtrail-worker/internal/gmail"
	"github.com/jobtrail/jobtrail-worker/internal/repository"
	"github.com/jobtrail/jobtrail-worker/internal/service"
	"github.com/jobtrail/jobtrail-worker/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().Timestamp().Str("component", "worker").Logger()

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close(db)

	zlog.Info().Msg("database connected")

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	zlog.Info().Msg("migrations completed")

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	detectionRepo := repository.NewDetectionRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)

	// Initialize mail source and extractor
	gmailClient := gmail.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, zlog)
	aiClient := extractor.NewClient(cfg.AIEndpoint, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout)

	// Initialize services
	syncService := service.NewSyncService(
		accountRepo,
		detectionRepo,
		applicationRepo,
		gmailClient,
		aiClient,
		zlog,
		cfg.SyncBatchSize,
		cfg.AIConcurrency,
	)

	// Initialize watcher
	w := watcher.New(accountRepo, syncService, cfg.PollInterval, zlog)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start watcher in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case <-sigChan:
		zlog.Info().Msg("shutdown signal received")
		cancel()

		// Wait for graceful shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			zlog.Warn().Msg("shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				zlog.Error().Err(err).Msg("watcher error")
			}
		}

		zlog.Info().Msg("application stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
