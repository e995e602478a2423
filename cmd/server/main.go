/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timesheet engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment), apply flag overrides
  2. Initialize logger
  3. Open the store (SQLite or PostgreSQL)
  4. Build collaborators: evidence encoder, dispatcher, notifier
  5. Create the registry, handler and router
  6. Schedule the due check
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      Database path or DSN (overrides DATABASE_URL)
           Use ":memory:" with sqlite for an in-memory database

ENVIRONMENT:
  See config/config.go. Without TELEGRAM_TOKEN, submissions and reminders
  are written to the log.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the due check schedule
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/timesheets.db"

  # Run against PostgreSQL
  DATABASE_DRIVER=postgres DATABASE_URL=postgres://localhost/timesheets ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - api/scheduler.go: Due check
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/api"
	"github.com/warp/timesheet-engine/config"
	"github.com/warp/timesheet-engine/evidence"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/logger"
	"github.com/warp/timesheet-engine/notify"
	"github.com/warp/timesheet-engine/store/postgres"
	"github.com/warp/timesheet-engine/store/sqlite"
	"github.com/warp/timesheet-engine/timesheet"
)

// backend is what the server needs from a store.
type backend interface {
	generic.KVStore
	generic.ReminderLog
	io.Closer
}

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides PORT)")
	dbURL := flag.String("db", "", "Database path or DSN (overrides DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbURL != "" {
		cfg.DatabaseURL = *dbURL
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	entry := logrus.NewEntry(log)

	store, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	encoder, err := evidence.NewEncoder(evidence.Config{
		MaxDimension: cfg.EvidenceMaxDimension,
		JPEGQuality:  cfg.EvidenceJPEGQuality,
		CacheSize:    cfg.EvidenceCacheSize,
	}, entry)
	if err != nil {
		log.WithError(err).Fatal("Invalid evidence settings")
	}

	dispatcher, notifier, err := sinks(cfg, entry)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize notifications")
	}

	registry := timesheet.NewRegistry(store, timesheet.Options{
		Dispatcher: notify.NewRetrying(dispatcher, cfg.DispatchAttempts, entry),
		Encoder:    encoder,
		Clock:      generic.SystemClock{},
		Logger:     entry,
	})

	scheduler := api.NewDueCheckScheduler(registry, store, notifier, cfg.DueCheckCron, entry)
	scheduler.Enabled = cfg.DueCheckEnabled
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("Failed to schedule due check")
	}

	handler := api.NewHandler(registry, store, scheduler, entry)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"driver":   cfg.DatabaseDriver,
			"telegram": cfg.TelegramEnabled(),
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop(ctx)
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}

func openStore(cfg *config.Config) (backend, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.DatabaseURL)
	}
}

// sinks picks Telegram when configured, the log otherwise.
func sinks(cfg *config.Config, log *logrus.Entry) (timesheet.Dispatcher, notify.Notifier, error) {
	if !cfg.TelegramEnabled() {
		sink := notify.NewLog(log)
		return sink, sink, nil
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		return nil, nil, err
	}
	return tg, tg, nil
}
