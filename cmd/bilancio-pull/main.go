// bilancio-pull runs a one-shot data pull from the command line. Two-factor
// codes are read from stdin: when a scraper asks, type the code and press
// enter.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"bilancio/internal/config"
	"bilancio/internal/events"
	"bilancio/internal/log"
	"bilancio/internal/scrape"
	"bilancio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	creds, err := scrape.LoadCredentials(cfg.CredentialsPath)
	if err != nil {
		logger.Error("Failed to load credentials", log.FieldError, err, "path", cfg.CredentialsPath)
		os.Exit(1)
	}
	if len(creds) == 0 {
		fmt.Fprintln(os.Stderr, "no credentials configured, nothing to pull")
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var pullPublisher scrape.PullPublisher
	if cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			pullPublisher = client
		}
	}

	source := scrape.NewScriptSource(cfg.ScraperDir, logger)
	fetcher := scrape.NewFetcher(source, store, pullPublisher, cfg.PullConcurrency, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PullTimeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Forward stdin lines as two-factor codes.
	code := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case code <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	result, err := fetcher.PullAll(ctx, creds, code)
	if err != nil {
		logger.Error("Pull aborted", log.FieldError, err)
		os.Exit(1)
	}

	for _, a := range result.Accounts {
		if a.Error != "" {
			fmt.Printf("FAIL %s/%s: %s\n", a.Provider, a.Account, a.Error)
			continue
		}
		fmt.Printf("ok   %s/%s: %d rows\n", a.Provider, a.Account, a.Rows)
	}
	if failed := result.Failed(); len(failed) > 0 {
		fmt.Printf("%d of %d accounts failed\n", len(failed), len(result.Accounts))
		os.Exit(2)
	}
}
