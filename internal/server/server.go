package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/handler"
	"github.com/faucetdb/basin/internal/server/middleware"
	"github.com/faucetdb/basin/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	// RateLimit is the request budget per client IP per minute; 0 disables it.
	RateLimit int
	// TenantRateLimit is the request budget per tenant per minute; 0 disables it.
	TenantRateLimit int
	SessionTTL      time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		RateLimit:       600,
		TenantRateLimit: 3000,
		SessionTTL:      24 * time.Hour,
	}
}

// Server is the top-level HTTP server for Basin. It owns the Chi router, the
// storage connector, the content service and the authentication service.
type Server struct {
	cfg        Config
	router     chi.Router
	conn       connector.Connector
	svc        *service.ContentService
	authSvc    *service.AuthService
	mcp        http.Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithMCP mounts an MCP streamable HTTP handler at /mcp behind authentication.
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, conn connector.Connector, svc *service.ContentService, authSvc *service.AuthService, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		conn:    conn,
		svc:     svc,
		authSvc: authSvc,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRouter()
	return s
}

// userID stamps the authenticated principal into audit fields.
func userID(r *http.Request) string {
	if p := middleware.GetPrincipal(r.Context()); p != nil {
		return p.UserID
	}
	return ""
}

func principal(r *http.Request) *service.Principal {
	return middleware.GetPrincipal(r.Context())
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	if s.cfg.RateLimit > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
	}
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	content := handler.NewContentHandler(s.svc, userID)
	openAPI := handler.NewOpenAPIHandler(s.svc)
	system := handler.NewSystemHandler(s.svc, s.authSvc, principal, s.cfg.SessionTTL)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(s.authSvc))

		// Field type registry
		r.Get("/field-types", content.ListFieldTypes)

		// Sessions and tenant listing
		r.Route("/system", func(r chi.Router) {
			r.Post("/session", system.Login)
			r.Get("/session", system.Session)
			r.Delete("/session", system.Logout)
			r.Get("/tenants", system.ListTenants)
		})

		// Tenant content APIs
		r.Route("/{tenant}", func(r chi.Router) {
			r.Use(middleware.RequireTenant("tenant"))
			if s.cfg.TenantRateLimit > 0 {
				r.Use(middleware.RateLimitByTenant("tenant", s.cfg.TenantRateLimit))
			}

			r.Post("/_tenant", content.ProvisionTenant)

			// Collections
			r.Get("/collections", content.ListCollections)
			r.Post("/collections", content.CreateCollection)
			r.Patch("/collections/{collection}", content.UpdateCollection)
			r.Delete("/collections/{collection}", content.DeleteCollection)
			r.Put("/collections/{collection}/column-order", content.SetColumnOrder)
			r.Get("/collections/{collection}/_doc", openAPI.ServeCollectionSpec)

			// Columns
			r.Get("/collections/{collection}/columns", content.ListColumns)
			r.Post("/collections/{collection}/columns", content.CreateColumn)
			r.Get("/collections/{collection}/columns/{fieldId}", content.GetColumn)
			r.Patch("/collections/{collection}/columns/{fieldId}", content.UpdateColumn)
			r.Delete("/collections/{collection}/columns/{fieldId}", content.DeleteColumn)
			r.Post("/collections/{collection}/columns/{fieldId}/sort", content.SortColumn)

			// Documents
			r.Get("/collections/{collection}/documents", content.ListDocuments)
			r.Post("/collections/{collection}/documents", content.CreateDocuments)
			r.Get("/documents/{id}", content.GetDocument)
			r.Patch("/documents/{id}", content.UpdateDocument)
			r.Delete("/documents", content.DeleteDocuments)
		})
	})

	// --- MCP over streamable HTTP ---
	if s.mcp != nil {
		r.With(middleware.Authenticate(s.authSvc)).Handle("/mcp", s.mcp)
	}

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the content store is
// reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{"database": "ok"}

	if err := s.conn.Ping(r.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the database connection.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.conn.Disconnect(); err != nil {
		s.logger.Warn("closing database", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
