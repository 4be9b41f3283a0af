package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/cache"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/health"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/logger"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/middleware"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/config"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	zoneEvents "github.com/Kilat-Pet-Delivery/service-zone/internal/events"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/gateway/zoneservice"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-zone/migrations"
)

const serviceName = "service-zone"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting "+serviceName,
		zap.String("addr", cfg.Addr()),
		zap.String("env", cfg.AppEnv),
	)

	// Connect to database
	dbConfig := cfg.Postgres()
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to access database handle", zap.Error(err))
	}

	// Run database migrations
	if cfg.IsDevelopment() {
		if err := db.AutoMigrate(&repository.BatchModel{}, &repository.DraftModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Outbound zone and store directory service
	zoneClient := zoneservice.NewClient(zoneservice.Config{
		BaseURL:    cfg.ZoneServiceConfig.BaseURL,
		Timeout:    cfg.ZoneServiceConfig.Timeout,
		RetryCount: cfg.ZoneServiceConfig.RetryCount,
	}, log)

	readiness := map[string]health.Pinger{"postgres": sqlDB}

	// Optional shared store snapshot
	var snapshotCache application.SnapshotCache
	if cfg.ValkeyConfig.Addr != "" {
		storeCache, err := cache.NewStoreSnapshotCache(cfg.ValkeyConfig.Addr, cfg.ValkeyTTL())
		if err != nil {
			log.Fatal("failed to connect to valkey", zap.Error(err))
		}
		defer storeCache.Close()
		snapshotCache = storeCache
		readiness["valkey"] = storeCache
		log.Info("store snapshot cache enabled", zap.String("addr", cfg.ValkeyConfig.Addr))
	}

	catalog := application.NewStoreCatalog(zoneClient, snapshotCache, log)
	draftRepo := repository.NewGormDraftRepository(db)
	canonicalizer := metadata.NewCanonicalizer(metadata.DefaultSynonyms())

	// Initialize application services
	importService := application.NewImportService(draftRepo, catalog, canonicalizer, kafkaProducer, log)
	stagingService := application.NewStagingService(draftRepo, zoneClient, catalog, kafkaProducer, log)
	adminService := application.NewZoneAdminService(zoneClient, catalog, zoneservice.IsNotFound, kafkaProducer, log)

	// Initialize and start store event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + serviceName
	storeConsumer := zoneEvents.NewStoreEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		catalog,
		log,
	)
	defer func() { _ = storeConsumer.Close() }()

	go func() {
		log.Info("starting store event consumer")
		if err := storeConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("store event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	importHandler := handler.NewImportHandler(importService, stagingService, cfg.ImportConfig.MaxUploadBytes)
	zoneHandler := handler.NewZoneHandler(adminService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(metrics.Middleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(serviceName, readiness)
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", metrics.Handler())

	// Register routes
	importHandler.RegisterRoutes(&router.RouterGroup)
	zoneHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down " + serviceName + "...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info(serviceName + " stopped")
}
