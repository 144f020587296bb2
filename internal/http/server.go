package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"pmpv/internal/cache"
	"pmpv/internal/core"
	"pmpv/internal/log"
	"pmpv/internal/services"
)

// Options tune the server. Zero values select the defaults.
type Options struct {
	DefaultConfig     core.QuarterConfig
	RequestsPerMinute int
	ReportCacheSize   int
	ReportCacheTTL    time.Duration
}

// appMetrics counts domain events for /metrics.
type appMetrics struct {
	uptime       time.Time
	calculations int64
	exports      int64
	imports      int64
}

type Server struct {
	http.Server
	svc         *services.QuarterService
	defaultCfg  core.QuarterConfig
	logger      *log.Logger
	reqLogger   *log.StructuredLogger
	rateLimiter *rateLimiter
	security    *securityMetrics
	metrics     *appMetrics

	// Rendered xlsx reports keyed by session version
	reports  *cache.LRUCache[[]byte]
	cacheMgr *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.QuarterService, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.DefaultConfig.StartMonth == "" {
		opts.DefaultConfig = core.DefaultQuarterConfig()
	}
	if opts.ReportCacheSize <= 0 {
		opts.ReportCacheSize = 32
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 10 * time.Minute
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:         svc,
		defaultCfg:  opts.DefaultConfig,
		logger:      logger,
		reqLogger:   log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		security:    &securityMetrics{},
		metrics:     &appMetrics{uptime: time.Now()},
		reports:     cache.NewLRUCache[[]byte](opts.ReportCacheSize, opts.ReportCacheTTL),
		cacheMgr:    cache.NewManager(),
	}
	s.cacheMgr.Register(s.reports)
	s.cacheMgr.StartCleanup(5 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)
	s.Handler = log.Middleware(logger)(s.withSecurity(mux))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /calendar", s.handleCalendar)
	mux.HandleFunc("GET /template.xlsx", s.handleTemplate)

	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PUT /sessions/{id}/settings", s.handleUpdateSettings)

	mux.HandleFunc("GET /sessions/{id}/months/{slot}", s.handleGetMonth)
	mux.HandleFunc("PUT /sessions/{id}/months/{slot}", s.handleSaveMonth)
	mux.HandleFunc("POST /sessions/{id}/months/{slot}/rows", s.handleAddRow)
	mux.HandleFunc("PATCH /sessions/{id}/months/{slot}/rows/{row}", s.handleSetField)
	mux.HandleFunc("DELETE /sessions/{id}/months/{slot}/rows/{row}", s.handleRemoveRow)
	mux.HandleFunc("POST /sessions/{id}/months/{slot}/duplicate", s.handleDuplicateRow)

	mux.HandleFunc("POST /sessions/{id}/calculate", s.handleCalculate)
	mux.HandleFunc("GET /sessions/{id}/report.xlsx", s.handleReport)
	mux.HandleFunc("POST /sessions/{id}/import", s.handleImport)
}

// withSecurity adds security headers, rate limiting and request logging.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}
		logger := s.logger.With(log.FieldRequestID, requestID, log.FieldClientIP, clientIP)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		if reason := inspectRequest(r, s.security); reason != "" {
			logger.WarnContext(ctx, "Suspicious request",
				"reason", reason,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.security) {
			logger.WarnContext(ctx, "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
			return
		}

		s.reqLogger.LogHTTPStart(ctx, r, clientIP)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.reqLogger.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the background cleanups and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
