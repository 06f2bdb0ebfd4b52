// Package main provides the API server entry point for the rescan service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rescan/internal/api"
	"github.com/rescan/internal/catalog"
	"github.com/rescan/internal/config"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/metrics"
	"github.com/rescan/internal/service"
	"github.com/rescan/internal/storage"
	"github.com/rescan/internal/vision"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	defer func() {
		_ = logger.Sync()
	}()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Storage
	logger.WithField("driver", cfg.Database.Driver).Info("Running migrations...")
	if err := storage.RunMigrations(&cfg.Database); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	db, err := storage.Open(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	var cacheService *storage.CacheService
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		cacheService = storage.NewCacheService(redis, cfg.Cache.TTL)
		logger.WithField("addr", cfg.Database.Redis.RedisAddr()).Info("Address cache enabled")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		logger.WithError(err).Fatal("Failed to register metrics")
	}

	// Materials and classifier
	materials, err := catalog.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load materials catalog")
	}

	ctx := context.Background()
	classifier, closeClassifier, err := newClassifier(ctx, &cfg.Vision, materials)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize material classifier")
	}
	defer closeClassifier()
	resilient := vision.NewResilientClassifier(classifier, cfg.Vision.MaxRetries, collector)

	// Services
	policy, err := service.LoadPointsPolicy(&cfg.Ledger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load points policy")
	}

	stores := service.NewStores(db, cfg.Ledger.MaxAddressLength)
	ledgerService := service.NewLedgerService(stores, policy, cfg.Ledger.ScanTimeout, cacheService, collector)
	addressService := service.NewAddressService(stores, cacheService)
	scanService := service.NewScanService(resilient, ledgerService, stores.Addresses)

	logger.WithFields(map[string]interface{}{
		"provider":      classifier.Name(),
		"recyclable":    policy.Recyclable,
		"nonRecyclable": policy.NonRecyclable,
	}).Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: 10 * time.Second,
		AllowOrigins:    cfg.Server.AllowOrigins,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
		TrustedProxies:  cfg.RateLimit.TrustedProxies,
		LimiterIdleTTL:  cfg.RateLimit.IdleTTL,
		MaxUploadBytes:  cfg.Upload.MaxBytes,
	}

	server := api.NewServer(serverConfig, api.Dependencies{
		Addresses: addressService,
		Ledger:    ledgerService,
		Scans:     scanService,
		Materials: materials,
		Health:    db,
		Gatherer:  registry,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

// newClassifier builds the configured material identification provider
func newClassifier(ctx context.Context, cfg *config.VisionConfig, materials *catalog.Catalog) (vision.Classifier, func(), error) {
	switch cfg.Provider {
	case config.VisionGemini:
		gemini, err := vision.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return gemini, gemini.Close, nil
	default:
		return vision.NewStaticClassifier(materials), func() {}, nil
	}
}
