package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blog-comment-widget/internal/api"
	"github.com/blog-comment-widget/internal/config"
	"github.com/blog-comment-widget/internal/database"
	"github.com/blog-comment-widget/internal/identity"
	"github.com/blog-comment-widget/internal/realtime"
	"github.com/blog-comment-widget/internal/repository"
	"github.com/blog-comment-widget/internal/store"
	"github.com/blog-comment-widget/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting blog comment widget server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithOutput(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Server.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Initialize services
	sessions := identity.NewService(repos.Session, cfg.Widget.SessionTTL, log)
	broker := realtime.NewBroker(log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Start change notification listener
	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		if err := broker.Run(ctx, db.NewListener(&cfg.Realtime), cfg.Realtime.PingInterval); err != nil {
			log.Error().Err(err).Msg("Change listener stopped")
		}
	}()
	log.Info().Msg("Change listener started")

	adapter := store.New(store.Deps{
		Comments: repos.Comment,
		Notifier: broker,
		Identity: sessions,
		Log:      log,
	}, store.Options{
		PlaceholderAuthor: cfg.Widget.PlaceholderAuthor,
		MaxBodyRunes:      cfg.Widget.MaxBodyRunes,
		SnapshotLimit:     cfg.Widget.SnapshotLimit,
	})

	// Initialize router
	router, err := api.NewRouter(api.Deps{
		Stores:        api.AdapterFactory(adapter),
		Identity:      sessions,
		Comments:      repos.Comment,
		Subscriptions: broker,
		Health:        db.HealthCheck,
		PoolStats:     db.Stats,
		Config:        cfg,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build router")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop live subscriptions so open streams end before the server waits on them
	stop()
	<-listenerDone

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
