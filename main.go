package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-engine/internal/cache"
	"github.com/SAP-F-2025/quiz-engine/internal/config"
	"github.com/SAP-F-2025/quiz-engine/internal/handlers"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories/casdoor"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
	"github.com/SAP-F-2025/quiz-engine/internal/validator"
	"github.com/SAP-F-2025/quiz-engine/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := utils.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	logger := utils.NewSlogLogger(slogLogger)

	ctx := context.Background()

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			logger.Warn("Failed to initialize Redis, continuing without it", "error", err)
			redisClient = nil
		}
	}

	// Initialize repositories
	var (
		db          *gorm.DB
		repo        repositories.Repository
		repoManager repositories.RepositoryManager
	)
	switch cfg.Storage {
	case "memory":
		logger.Warn("Using in-memory storage, data is lost on restart")
		repo = memory.NewRepository()
	default:
		db, err = pkg.InitDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		repoManager = postgres.NewRepositoryManager(postgres.RepositoryConfig{
			DB:          db,
			RedisClient: redisClient,
			ReminderTTL: cfg.Scheduler.ReminderRetainFor,
		})
		if err := repoManager.Initialize(); err != nil {
			log.Fatalf("Failed to initialize repositories: %v", err)
		}
		repo = repoManager.GetRepository()
	}

	// Casdoor client backs both enrollment lookups and bearer token auth
	var tokenParser handlers.TokenParser
	var directory repositories.EnrollmentDirectory
	if cfg.Casdoor.Enabled() {
		client := casdoor.NewClient(casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		})
		tokenParser = client
		if cfg.EnrollmentSource == "casdoor" {
			directory = casdoor.NewEnrollmentCasdoor(client, redisClient)
		}
	} else {
		logger.Warn("Casdoor is not configured, trusting identity headers")
	}
	if directory == nil {
		if db != nil {
			directory = postgres.NewEnrollmentPostgreSQL(db)
		} else {
			directory = memory.NewDirectory()
		}
	}

	// Initialize event publisher
	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	var locker services.Locker
	if redisClient != nil {
		locker = cache.NewRedisLocker(redisClient, "quiz-engine:lock:", 30*time.Second)
	}

	// Initialize services
	clock := services.SystemClock{}
	serviceManager := services.NewServiceManager(services.ServiceDependencies{
		Repo:      repo,
		Directory: directory,
		Publisher: publisher,
		Locker:    locker,
		Validator: validator.New(),
		Clock:     clock,
		Logger:    slogLogger,
	}, services.ServiceManagerConfig{
		CollaboratorTimeout: cfg.CollaboratorTimeout,
		GradeScheme:         cfg.GradeScheme,
		SchedulerEnabled:    cfg.Scheduler.Enabled,
		Scheduler: services.SchedulerConfig{
			ScanInterval:    cfg.Scheduler.ScanInterval,
			DayAheadHorizon: cfg.Scheduler.DayAheadHorizon,
			ImminentHorizon: cfg.Scheduler.ImminentHorizon,
		},
	})
	if err := serviceManager.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger)
	handlers.NewHandlerManager(serviceManager, clock, handlers.NewAuthMiddleware(tokenParser), logger).SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage", cfg.Storage,
			"enrollment_source", cfg.EnrollmentSource)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Stops the scheduler before storage goes away
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	// Closes the database and the shared Redis client
	if repoManager != nil {
		if err := repoManager.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to close repositories", "error", err)
		}
	} else if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
