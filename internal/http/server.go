package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"fortuna/internal/backend"
	"fortuna/internal/cache"
	"fortuna/internal/core"
	"fortuna/internal/log"
	"fortuna/internal/middleware/ratelimit"
	"fortuna/internal/middleware/security"
	"fortuna/internal/middleware/trace"
)

// Options tune the API server.
type Options struct {
	// ReportCacheTTL is how long monthly reports are served from cache. Zero
	// disables the cache.
	ReportCacheTTL time.Duration
	// RateLimitPerMinute caps requests per client. Zero disables limiting.
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	svc *backend.Services
	now func() time.Time

	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter

	// reports caches monthly overviews keyed by "YYYY-MM". Every write purges it.
	reports      *cache.LRUCache[core.MonthOverview]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, svc *backend.Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}
	ips := security.NewIPResolver()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		svc:          svc,
		now:          time.Now,
		tracer:       trace.NewMiddleware(ips.ClientIP),
		cacheManager: cache.NewManager(),
	}
	if opts.ReportCacheTTL > 0 {
		s.reports = cache.NewLRUCache[core.MonthOverview](64, opts.ReportCacheTTL)
		s.cacheManager.Register(s.reports)
		s.cacheManager.StartCleanup(10 * time.Minute)
	}
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) }))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	if s.rateLimiter != nil {
		r.Use(s.rateLimiter.Middleware(ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate limit exceeded", Code: "rate_limited"})
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.invalidateReportsOnWrite)

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.handleCreateAccount)
			r.Get("/", s.handleListAccounts)
			r.Get("/{id}", s.handleGetAccount)
			r.Patch("/{id}", s.handleRenameAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Get("/{id}/reconcile", s.handleReconcileAccount)
		})
		r.Get("/reconcile", s.handleReconcileAll)

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.handleCreateCategory)
			r.Get("/", s.handleListCategories)
			r.Get("/{id}", s.handleGetCategory)
			r.Patch("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
			r.Get("/{id}/status", s.handleCategoryStatus)
		})

		r.Post("/expenses", s.handleRecordExpense)
		r.Post("/incomes", s.handleRecordIncome)
		r.Post("/transfers", s.handleRecordTransfer)
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", s.handleCreateSubscription)
			r.Get("/", s.handleListSubscriptions)
			r.Post("/process", s.handleProcessDue)
			r.Get("/{id}", s.handleGetSubscription)
			r.Patch("/{id}", s.handleUpdateSubscription)
			r.Delete("/{id}", s.handleDeleteSubscription)
			r.Get("/{id}/transactions", s.handleSubscriptionTransactions)
			r.Get("/{id}/upcoming", s.handleUpcoming)
			r.Post("/{id}/pay", s.handlePaySubscription)
		})

		r.Get("/reports/monthly", s.handleMonthlyReport)

		r.Get("/snapshot", s.handleExportSnapshot)
		r.Post("/snapshot", s.handleImportSnapshot)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "no such route", Code: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed", Code: "method_not_allowed"})
	})

	s.Handler = r
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateReportsOnWrite purges cached reports after any request that may
// have changed the ledger.
func (s *Server) invalidateReportsOnWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		if r.Method != http.MethodGet && r.Method != http.MethodHead && s.reports != nil {
			s.reports.Purge()
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the store answers a read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.svc.Catalog.ListAccounts(ctx); err != nil {
		slog.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorBody{Error: "store unavailable", Code: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func reportKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}
