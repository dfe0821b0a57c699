// Package http exposes the budget engine, the registry and the pull manager
// as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/registry"
	"bilancio/internal/scrape"
)

// Exporter pushes an allocation view to an external spreadsheet. Optional.
type Exporter interface {
	ExportAllocation(ctx context.Context, alloc budget.Allocation) error
}

// TransactionLister backs the raw transaction listing. Implemented by
// storage.Store.
type TransactionLister interface {
	Expenses(ctx context.Context, start, end core.Date, excluded []string) ([]core.Transaction, error)
	DefaultWindowStart(ctx context.Context) core.Date
}

type Server struct {
	httpServer *http.Server
	budget     *budget.Service
	registry   *registry.Registry
	txns       TransactionLister
	pulls      *scrape.Manager
	exporter   Exporter
	tracer     *trace.Middleware
	logger     *log.Logger
}

// NewServer wires the API routes. pulls and exporter may be nil; their
// endpoints then answer 503.
func NewServer(addr string, svc *budget.Service, reg *registry.Registry, txns TransactionLister, pulls *scrape.Manager, exporter Exporter, logger *log.Logger) *Server {
	s := &Server{
		budget:   svc,
		registry: reg,
		txns:     txns,
		pulls:    pulls,
		exporter: exporter,
		tracer:   trace.NewMiddleware(logger),
		logger:   logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)

	mux.HandleFunc("GET /api/months/{year}/{month}", s.handleMonthView)
	mux.HandleFunc("PUT /api/months/{year}/{month}/total", s.handleSetMonthTotal)
	mux.HandleFunc("POST /api/months/{year}/{month}/copy-last-month", s.handleCopyLastMonth)
	mux.HandleFunc("GET /api/months/{year}/{month}/available-tags", s.handleMonthAvailableTags)
	mux.HandleFunc("POST /api/months/{year}/{month}/export", s.handleExportMonth)

	mux.HandleFunc("GET /api/projects/{project}", s.handleProjectView)
	mux.HandleFunc("PUT /api/projects/{project}/total", s.handleSetProjectTotal)
	mux.HandleFunc("GET /api/projects/{project}/available-tags", s.handleProjectAvailableTags)

	mux.HandleFunc("POST /api/rules", s.handleAddRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleAddCategory)
	mux.HandleFunc("DELETE /api/categories/{name}", s.handleDeleteCategory)
	mux.HandleFunc("POST /api/categories/{name}/tags", s.handleAddTag)
	mux.HandleFunc("DELETE /api/categories/{name}/tags/{tag}", s.handleDeleteTag)
	mux.HandleFunc("POST /api/categories/reallocate", s.handleReallocateTags)

	mux.HandleFunc("POST /api/pull", s.handleStartPull)
	mux.HandleFunc("GET /api/pull/status", s.handlePullStatus)
	mux.HandleFunc("POST /api/pull/code", s.handleSubmitCode)
	mux.HandleFunc("DELETE /api/pull", s.handleCancelPull)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.tracer.Wrap(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening",
		log.FieldOperation, log.OpStartup, "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down", log.FieldOperation, log.OpShutdown)
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"requestsServed": s.tracer.TotalRequests(),
	})
}
