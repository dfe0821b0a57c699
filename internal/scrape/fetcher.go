package scrape

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// TransactionWriter stores fetched rows. Implemented by storage.Store.
type TransactionWriter interface {
	InsertTransactions(ctx context.Context, txns []core.Transaction) (int, error)
}

// PullPublisher announces a finished pull. Optional; nil skips it.
type PullPublisher interface {
	PublishPullCompleted(ctx context.Context, result PullResult) error
}

// AccountResult is the outcome of one account's pull. Error is a string so
// the whole result serializes for the status endpoint.
type AccountResult struct {
	Kind     core.SourceKind `json:"kind"`
	Provider string          `json:"provider"`
	Account  string          `json:"account"`
	Rows     int             `json:"rows"`
	Error    string          `json:"error,omitempty"`
}

// PullResult aggregates every account of a pull run. Partial success is the
// normal case: failed accounts are named, successful ones keep their rows.
type PullResult struct {
	Accounts []AccountResult `json:"accounts"`
}

// Failed lists the accounts that did not complete.
func (r PullResult) Failed() []AccountResult {
	var out []AccountResult
	for _, a := range r.Accounts {
		if a.Error != "" {
			out = append(out, a)
		}
	}
	return out
}

// Fetcher fans a pull out across every account in the credentials mapping.
type Fetcher struct {
	source      Source
	store       TransactionWriter
	events      PullPublisher
	concurrency int
	logger      *log.Logger
}

func NewFetcher(source Source, store TransactionWriter, events PullPublisher, concurrency int, logger *log.Logger) *Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		source:      source,
		store:       store,
		events:      events,
		concurrency: concurrency,
		logger:      logger.WithComponent(log.ComponentScrape),
	}
}

// PullAll fetches every account concurrently and stores what arrives. An
// account failure is recorded by name and never aborts its siblings; the
// returned error is reserved for context cancellation.
func (f *Fetcher) PullAll(ctx context.Context, creds Credentials, code <-chan string) (PullResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	var (
		mu     sync.Mutex
		result PullResult
	)
	record := func(ar AccountResult) {
		mu.Lock()
		result.Accounts = append(result.Accounts, ar)
		mu.Unlock()
	}

	for kind, providers := range creds {
		for provider, accounts := range providers {
			for account, fields := range accounts {
				req := FetchRequest{Kind: kind, Provider: provider, Account: account, Fields: fields, Code: code}
				g.Go(func() error {
					ar := AccountResult{Kind: req.Kind, Provider: req.Provider, Account: req.Account}
					rows, err := f.pullAccount(gctx, req)
					if err != nil {
						ar.Error = err.Error()
						f.logger.WarnContext(gctx, "Account pull failed",
							log.FieldProvider, req.Provider, log.FieldAccount, req.Account,
							log.FieldError, err)
					}
					ar.Rows = rows
					record(ar)
					if gctx.Err() != nil {
						return gctx.Err()
					}
					return nil
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	// Goroutine finish order is nondeterministic; fix it for callers.
	sort.Slice(result.Accounts, func(i, j int) bool {
		a, b := result.Accounts[i], result.Accounts[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}
		return a.Account < b.Account
	})

	f.logger.InfoContext(ctx, "Pull completed",
		log.FieldOperation, log.OpPull,
		log.FieldCount, len(result.Accounts), "failed", len(result.Failed()))
	if f.events != nil {
		if err := f.events.PublishPullCompleted(ctx, result); err != nil {
			f.logger.WarnContext(ctx, "Failed to publish pull event", log.FieldError, err)
		}
	}
	return result, nil
}

func (f *Fetcher) pullAccount(ctx context.Context, req FetchRequest) (int, error) {
	txns, err := f.source.Fetch(ctx, req)
	if err != nil {
		return 0, err
	}
	n, err := f.store.InsertTransactions(ctx, txns)
	if err != nil {
		return 0, fmt.Errorf("store %s/%s rows: %w", req.Provider, req.Account, err)
	}
	return n, nil
}
