package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/cors"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/recovery"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

// Config holds the transport settings.
type Config struct {
	Addr               string
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	Ready              ReadyFunc
	Logger             *applog.Logger
}

// Server wraps http.Server with the expense routes and their middleware.
type Server struct {
	http.Server

	api        ExpenseAPI
	ready      ReadyFunc
	logger     *applog.Logger
	structured *applog.StructuredLogger

	tracer      *trace.Middleware
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, api ExpenseAPI) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = applog.Default()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()

	s := &Server{
		api:        api,
		ready:      cfg.Ready,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
		tracer:     trace.NewMiddleware(detector.ExtractClientIP, logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
		detector: detector,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /getExpenses", s.handleList)
	mux.HandleFunc("GET /expenses", s.handleList)
	mux.HandleFunc("POST /addExpense", s.handleCreate)
	mux.HandleFunc("POST /expenses", s.handleCreate)
	mux.HandleFunc("PUT /expenses/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /expenses/{id}", s.handleDelete)
	for _, pattern := range []string{"PUT /expenses", "PUT /expenses/", "DELETE /expenses", "DELETE /expenses/"} {
		mux.HandleFunc(pattern, s.handleMissingID)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("/", handleNotFound)

	corsCfg := cors.DefaultConfig()
	if cfg.CORSAllowedOrigin != "" {
		corsCfg.AllowedOrigin = cfg.CORSAllowedOrigin
	}

	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)

	onPanic := func(w http.ResponseWriter, r *http.Request) {
		InternalServerError("Internal server error", nil).Write(w)
	}

	// Outermost first
	s.Handler = chain(mux,
		s.tracer.Middleware,
		applog.Middleware(logger),
		applog.RequestIDMiddleware(trace.RequestIDFromRequest),
		recovery.Middleware(onPanic),
		detectionMiddleware(detector),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
		cors.Middleware(corsCfg),
		limit,
	)

	s.Addr = cfg.Addr
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second

	return s
}

// chain wraps h so that middlewares[0] runs first.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
