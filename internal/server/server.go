package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	"portodas-api/internal/api"
	"portodas-api/internal/observability/logging"
	"portodas-api/internal/observability/metrics"
	"portodas-api/internal/serverutil"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr            string
	TLS             TLSConfig
	RateLimit       RateLimitConfig
	CORS            CORSConfig
	Security        SecurityConfig
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
	ShutdownTimeout time.Duration

	// DisableMetricsEndpoint hides /metrics when it is scraped elsewhere.
	DisableMetricsEndpoint bool
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	metrics         *metrics.Recorder
	rateLimiter     *rateLimiter
	tlsCertFile     string
	tlsKeyFile      string
	shutdownTimeout time.Duration
}

// New assembles the router and middleware chain around handler. The rate
// limiter backend is registered with the handler's health checks.
func New(handler *api.Handler, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("api handler is required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("configure cors: %w", err)
	}

	rl := newRateLimiter(cfg.RateLimit)
	if rl.enabled() && cfg.RateLimit.RedisAddr != "" {
		handler.HealthChecks = append(handler.HealthChecks, api.HealthCheck{Component: "rate_limiter", Ping: rl.Ping})
	}

	trustProxy := cfg.RateLimit.TrustProxy
	router := chi.NewRouter()
	router.Use(
		requestIDMiddleware,
		logging.RequestLogger(logging.RequestLoggerConfig{
			Logger: logger,
			AdditionalFields: func(r *http.Request, _ int, _ time.Duration) []any {
				return []any{"remote_ip", clientIPFromRequest(r, trustProxy)}
			},
			DisableRemoteAddr: true,
		}),
		func(next http.Handler) http.Handler { return metrics.HTTPMiddleware(recorder, next) },
		middleware.Recoverer,
		func(next http.Handler) http.Handler { return securityHeadersMiddleware(cfg.Security, next) },
		func(next http.Handler) http.Handler { return corsMiddleware(policy, logger, trustProxy, next) },
		func(next http.Handler) http.Handler { return rateLimitMiddleware(rl, logger, recorder, next) },
		func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) },
	)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMiddlewareError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	})

	router.Get("/healthz", handler.Health)
	if !cfg.DisableMetricsEndpoint {
		router.Handle("/metrics", recorder.Handler())
	}
	router.Mount("/api/public", handler.PublicRoutes())
	router.Mount("/api/admin", handler.AdminRoutes())
	router.Mount("/api/uploads", handler.UploadRoutes())
	router.Mount("/api/auth", handler.AuthRoutes())

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	srv := &Server{
		httpServer:      httpServer,
		logger:          logger,
		metrics:         recorder,
		rateLimiter:     rl,
		tlsCertFile:     strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:      strings.TrimSpace(cfg.TLS.KeyFile),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

// Handler exposes the assembled middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests. ready,
// when non-nil, receives the bound address.
func (s *Server) Run(ctx context.Context, ready chan<- net.Addr) error {
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             serverutil.TLSConfig{CertFile: s.tlsCertFile, KeyFile: s.tlsKeyFile},
		ShutdownTimeout: s.shutdownTimeout,
		Logger:          s.logger,
		Ready:           ready,
	})
}
