package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/budget"
	"bilancio/internal/config"
	"bilancio/internal/events"
	"bilancio/internal/export"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/registry"
	"bilancio/internal/scrape"
	"bilancio/internal/storage"
)

func main() {
	// .env is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     parseLogLevel(cfg.LogLevel),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		logger.Error("Failed to open category registry", log.FieldError, err, "path", cfg.RegistryPath)
		os.Exit(1)
	}

	// Optional AMQP event feed.
	var eventsClient *events.Client
	if cfg.AMQPURL != "" {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", log.FieldError, err)
		} else {
			defer eventsClient.Close()
			logger.Info("AMQP event feed connected", "exchange", cfg.AMQPExchange)
		}
	}
	var publisher budget.EventPublisher
	var pullPublisher scrape.PullPublisher
	if eventsClient != nil {
		publisher = eventsClient
		pullPublisher = eventsClient
	}

	svc := budget.NewService(store, store, reg, publisher, logger)

	// Optional pull manager: only when credentials exist.
	var pulls *scrape.Manager
	creds, err := scrape.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		logger.Error("Failed to load credentials", log.FieldError, err, "path", cfg.CredentialsPath)
		os.Exit(1)
	}
	if len(creds) > 0 {
		source := scrape.NewScriptSource(cfg.ScraperDir, logger)
		fetcher := scrape.NewFetcher(source, store, pullPublisher, cfg.PullConcurrency, logger)
		pulls = scrape.NewManager(fetcher, creds, cfg.PullTimeout, logger)
	} else {
		logger.Info("No scraper credentials found, pull endpoints disabled")
	}

	// Optional spreadsheet export.
	var exporter apphttp.Exporter
	if cfg.SpreadsheetID != "" {
		client, err := export.NewClient(context.Background(), cfg.SpreadsheetID, logger)
		if err != nil {
			logger.Warn("Sheets export unavailable", log.FieldError, err)
		} else {
			exporter = client
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, reg, store, pulls, exporter, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if pulls != nil {
			pulls.Cancel()
		}
		cancel()
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
