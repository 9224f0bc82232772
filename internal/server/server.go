package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/auth"
	"github.com/hongminglow/customer-be/internal/config"
	"github.com/hongminglow/customer-be/internal/customer"
	"github.com/hongminglow/customer-be/internal/http/handlers"
	"github.com/hongminglow/customer-be/internal/media"
	"github.com/hongminglow/customer-be/internal/middleware"
	"github.com/hongminglow/customer-be/internal/monitoring"
	"github.com/hongminglow/customer-be/internal/ratelimit"
	"github.com/hongminglow/customer-be/internal/sanitize"
	"github.com/hongminglow/customer-be/internal/storage"
)

const (
	globalLimitMessage = "Too many requests from this IP, please try again later."
	loginLimitMessage  = "Too many login attempts, please try again after 15 minutes."
)

// Deps are the collaborators the server is built from.
type Deps struct {
	Store storage.CustomerStore
	// LimitStore backs both rate limiters. Nil means a fresh in-memory store.
	LimitStore ratelimit.Store
	Logger     *zap.Logger
	// Checks are pinged by /health.
	Checks map[string]handlers.Pinger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner   *http.Server
	handler http.Handler
	metrics *monitoring.Metrics
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limitStore := deps.LimitStore
	if limitStore == nil {
		limitStore = ratelimit.NewMemoryStore()
	}

	files, err := media.NewLocalStore(cfg.PublicDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("init media store: %w", err)
	}

	metrics := monitoring.NewMetrics()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL())
	svc := customer.NewService(deps.Store, tokens, files, cfg.UploadMaxBytes, logger.Named("customer"))

	global := &ratelimit.Limiter{
		Name:       "global",
		Limit:      cfg.RateLimit.Max,
		Window:     cfg.RateLimit.Window,
		Message:    globalLimitMessage,
		TrustProxy: cfg.TrustProxy,
		Store:      limitStore,
		Logger:     logger.Named("ratelimit"),
		Recorder:   metrics,
	}
	login := &ratelimit.Limiter{
		Name:           "login",
		Limit:          cfg.RateLimit.LoginMax,
		Window:         cfg.RateLimit.Window,
		Message:        loginLimitMessage,
		SkipSuccessful: true,
		TrustProxy:     cfg.TrustProxy,
		Store:          limitStore,
		Logger:         logger.Named("ratelimit"),
		Recorder:       metrics,
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), deps.Checks).Register(mux)
	handlers.NewCustomerHandler(svc, tokens, handlers.CustomerOptions{
		SecureCookies:  cfg.IsProduction(),
		TrustProxy:     cfg.TrustProxy,
		UploadMaxBytes: cfg.UploadMaxBytes,
		LoginLimiter:   login.Middleware,
		Metrics:        metrics,
		Logger:         logger.Named("http"),
	}).Register(mux)
	handlers.RegisterStatic(mux, files.Root())
	mux.Handle("GET /metrics", metrics.Handler())

	handler := middleware.Chain(monitoring.Route(mux),
		middleware.Recover(logger),
		middleware.Logging(logger.Named("access")),
		monitoring.Middleware(metrics),
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORSOrigins),
		sanitize.Body(sanitize.DefaultExempt, cfg.BodyLimitBytes),
		global.Middleware,
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http.server")),
	}

	return &Server{inner: httpServer, handler: handler, metrics: metrics}, nil
}

// Handler returns the full request pipeline.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
