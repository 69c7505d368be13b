package http

import (
	"context"
	"net/http"
	"time"

	"gastos/internal/backend"
	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/middleware/cors"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	"gastos/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dashboard is what the handlers need from the dashboard service.
type Dashboard interface {
	Location() *time.Location
	Home(ctx context.Context, userID string) (*services.HomeView, error)
	Analysis(ctx context.Context, userID string, p core.Period) (*services.AnalysisView, error)
	History(ctx context.Context, userID string, f core.HistoryFilter) (*services.HistoryView, error)
	Categories(ctx context.Context, userID string) ([]core.CategoryInfo, error)
	Refresh(ctx context.Context, userID string) ([]core.Transaction, error)
	Export(ctx context.Context, userID string, rng *core.DateRange) (*backend.Export, error)
	ExportAll(ctx context.Context) (*backend.Export, error)
	UpdateTransaction(ctx context.Context, userID, id string, u core.TransactionUpdate) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	Preferences(ctx context.Context, userID string) (core.Preferences, error)
	SavePreferences(ctx context.Context, userID string, p core.Preferences) (core.Preferences, error)
	Ready(ctx context.Context) error
}

// Options configures the server's middleware.
type Options struct {
	AllowedOrigins []string
	RateLimit      ratelimit.Config
	Logger         *log.Logger
}

type Server struct {
	http.Server
	dashboard   Dashboard
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	logger      *log.Logger
	startedAt   time.Time
	now         func() time.Time
}

// NewServer wires the router and middleware stack. Shutdown stops the
// rate limiter as well as the listener.
func NewServer(addr string, dashboard Dashboard, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		dashboard:   dashboard,
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		logger:      logger,
		startedAt:   time.Now(),
		now:         time.Now,
	}
	s.Handler = s.routes(opts)
	s.RegisterOnShutdown(s.rateLimiter.Stop)
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP).Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Middleware(opts.AllowedOrigins))
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{Error: "route not found", Code: "not_found", RequestID: trace.GetRequestID(r.Context())})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Code: "method_not_allowed", RequestID: trace.GetRequestID(r.Context())})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	// The backend's own export covers every user of the current month.
	r.With(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit)).
		Get("/api/export", s.handleExportAll)

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit))

		r.Get("/home", s.handleHome)
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/history", s.handleHistory)
		r.Get("/categories", s.handleCategories)
		r.Get("/export", s.handleExport)
		r.Post("/refresh", s.handleRefresh)

		r.Put("/expenses/{id}", s.handleUpdateExpense)
		r.Delete("/expenses/{id}", s.handleDeleteExpense)

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleSavePreferences)
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded, retry later",
		Code:      "rate_limited",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
