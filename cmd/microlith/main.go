package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourist-overwatch/api"
	"tourist-overwatch/api/middleware"
	"tourist-overwatch/api/services"
	"tourist-overwatch/db"
	"tourist-overwatch/pkg/config"
	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/services/dataset"
	embeddednats "tourist-overwatch/pkg/services/embedded-nats"
	"tourist-overwatch/pkg/services/tracking"
	"tourist-overwatch/pkg/services/workers"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	dbService *db.Service
	nats      *embeddednats.EmbeddedNATS
)

func initDB(cfg *config.Config) error {
	var err error

	dbConfig := db.DefaultConfig()
	dbConfig.DBPath = cfg.DBPath
	dbConfig.AutoInitialize = true

	dbService, err = db.New(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize database service: %w", err)
	}

	// Verify schema is properly initialized
	if err := dbService.VerifySchema(); err != nil {
		logger.Warn("Schema verification failed, re-applying schema", zap.Error(err))
		if err := dbService.InitializeSchema(); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return nil
}

func initNATS(cfg *config.Config) error {
	var err error

	natsConfig := embeddednats.DefaultConfig()
	natsConfig.DataDir = cfg.NATSDataDir
	natsConfig.Port = cfg.NATSPort

	nats, err = embeddednats.New(natsConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedded NATS: %w", err)
	}

	if err := nats.Start(); err != nil {
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	if err := nats.CreateOverwatchStreams(); err != nil {
		return fmt.Errorf("failed to create overwatch streams: %w", err)
	}

	if err := nats.CreateOverwatchConsumers(); err != nil {
		return fmt.Errorf("failed to create overwatch consumers: %w", err)
	}

	logger.Info("NATS JetStream initialized", zap.Int("port", cfg.NATSPort))
	return nil
}

func main() {
	cfg := config.Load()

	if _, err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.EnvFileLoaded {
		logger.Info("Loaded configuration from .env file")
	} else {
		logger.Info("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	if err := initDB(cfg); err != nil {
		logger.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// Initialize embedded NATS
	if err := initNATS(cfg); err != nil {
		logger.L().Fatal("Failed to initialize NATS", zap.Error(err))
	}

	archive := services.NewAlertArchiveService(dbService.GetDB())

	// Start NATS workers
	workerManager, err := workers.NewManager(nats, archive)
	if err != nil {
		logger.L().Fatal("Failed to create worker manager", zap.Error(err))
	}
	if err := workerManager.Start(); err != nil {
		logger.L().Fatal("Failed to start workers", zap.Error(err))
	}

	// A missing dataset degrades path lookups instead of stopping the server.
	paths := dataset.Load(cfg.DatasetPath)

	engineConfig := tracking.DefaultConfig()
	engineConfig.PredictDelay = cfg.PredictDelay
	events := services.NewEventService(nats)
	engine := tracking.New(paths, events, engineConfig)

	if cfg.UsingDefaultSecret() {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	users := services.NewUserService(dbService.GetDB(), tokens, bcrypt.DefaultCost)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Create HTTP server mux
	mux := http.NewServeMux()

	handlers := api.NewHandlers(engine, paths, users, archive, tokens)
	handlers.RegisterRoutes(mux, map[string]api.HealthCheckFunc{
		"database": dbService.Health,
		"nats":     nats.HealthCheck,
	})

	// Apply CORS middleware to all routes
	handler := middleware.CORS(middleware.RequestLogger(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10*time.Second + cfg.PredictDelay,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting Tourist Overwatch server",
			zap.String("port", cfg.Port),
			zap.String("dataset", cfg.DatasetPath),
			zap.Duration("predict_delay", cfg.PredictDelay),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server gracefully", zap.Error(err))
	}

	// Flush queued engine events while the broker is still up
	events.Close()

	// Stop workers
	if workerManager != nil {
		if err := workerManager.Stop(); err != nil {
			logger.Error("Failed to stop workers", zap.Error(err))
		}
	}

	// Shutdown NATS
	if nats != nil {
		if err := nats.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown NATS", zap.Error(err))
		}
	}

	logger.Info("Server shutdown complete")
}
