// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rescan/internal/catalog"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/models"
	"github.com/rescan/internal/service"
	"github.com/rescan/internal/types"
	"github.com/rescan/internal/vision"
)

// Service interfaces for dependency injection and testing

// AddressServiceInterface defines the address and scan read operations
type AddressServiceInterface interface {
	Lookup(ctx context.Context, address string) (*models.Address, error)
	FindOrCreate(ctx context.Context, address string) (*models.Address, bool, error)
	ListScans(ctx context.Context, address string, page types.Pagination) (*service.ScanPage, error)
	GetScan(ctx context.Context, id string) (*models.ScanRecord, error)
	AttachFeedback(ctx context.Context, id string, feedback string) (*models.ScanRecord, error)
}

// LedgerServiceInterface records an already classified scan
type LedgerServiceInterface interface {
	RecordScan(ctx context.Context, address string, result *types.MaterialResult) (*service.ScanReceipt, error)
}

// ScanServiceInterface classifies an uploaded photo and records the scan
type ScanServiceInterface interface {
	AnalyzeAndRecord(ctx context.Context, address string, img vision.Image) (*service.ScanReceipt, error)
}

// MaterialCatalog is the read-only materials reference
type MaterialCatalog interface {
	All() []catalog.Material
	Lookup(code string) (catalog.Material, bool)
}

// HealthChecker reports whether the store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	handler        http.Handler
	httpServer     *http.Server
	addressService AddressServiceInterface
	ledgerService  LedgerServiceInterface
	scanService    ScanServiceInterface
	materials      MaterialCatalog
	health         HealthChecker
	gatherer       prometheus.Gatherer
	config         *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
	RateLimitRPS    float64 // Requests per second per client
	RateLimitBurst  int
	TrustedProxies  []string
	LimiterIdleTTL  time.Duration
	MaxUploadBytes  int64
}

// Dependencies groups the collaborators the handlers call into
type Dependencies struct {
	Addresses AddressServiceInterface
	Ledger    LedgerServiceInterface
	Scans     ScanServiceInterface
	Materials MaterialCatalog
	Health    HealthChecker
	Gatherer  prometheus.Gatherer
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:         mux.NewRouter(),
		addressService: deps.Addresses,
		ledgerService:  deps.Ledger,
		scanService:    deps.Scans,
		materials:      deps.Materials,
		health:         deps.Health,
		gatherer:       deps.Gatherer,
		config:         config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst, s.config.TrustedProxies, s.config.LimiterIdleTTL)

	// Order matters: logging wraps everything so recovered panics are logged too
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// CORS sits outside the router: mux skips middleware for preflight
	// requests that match no route method
	s.handler = CORSMiddleware(s.config.AllowOrigins)(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{DisableCompression: true})).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Address endpoints. /lookup is registered before {address} so it wins.
	api.HandleFunc("/addresses/lookup", s.handleLookupAddress).Methods("POST")
	api.HandleFunc("/addresses/{address}", s.handleGetAddress).Methods("GET")
	api.HandleFunc("/addresses/{address}/scans", s.handleListScans).Methods("GET")
	api.HandleFunc("/addresses/{address}/scans", s.handleRecordScan).Methods("POST")

	// Scan endpoints
	api.HandleFunc("/scan", s.handleAnalyzeScan).Methods("POST")
	api.HandleFunc("/scans/{id}", s.handleGetScan).Methods("GET")
	api.HandleFunc("/scans/{id}/feedback", s.handleAttachFeedback).Methods("PUT")

	// Materials catalog
	api.HandleFunc("/materials", s.handleListMaterials).Methods("GET")
	api.HandleFunc("/materials/{code}", s.handleGetMaterial).Methods("GET")
}

// Handler returns the fully wired router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).WithError(err).Warn("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "rescan",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "rescan",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
