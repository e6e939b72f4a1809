package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"claims-service/internal/ai/gemini"
	"claims-service/internal/config"
	"claims-service/internal/database/minio"
	"claims-service/internal/database/postgres"
	redisdb "claims-service/internal/database/redis"
	"claims-service/internal/event"
	"claims-service/internal/handlers"
	"claims-service/internal/repository"
	"claims-service/internal/services"
	"claims-service/internal/worker"

	"github.com/gofiber/fiber/v3"
)

func setupLogging() (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	logDir := filepath.Join("/claims", "log", "claims_service")
	fmt.Println("Log directory:", logDir)
	err := os.MkdirAll(logDir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, nil)))
	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()
	slog.Info("Connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port, "dbname", cfg.PostgresCfg.DBname)

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("Failed to connect to database, retrying in background", "error", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	redisClient, err := redisdb.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
	if err != nil {
		log.Fatalf("Failed to connect to MinIO: %v", err)
	}

	// One Gemini client per configured key; the selector rotates across them.
	var geminiClients []gemini.GeminiClient
	for _, key := range strings.Split(cfg.GeminiAPICfg.APIKey, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		client, err := gemini.NewGenAIClient(key, cfg.GeminiAPICfg.FlashName, cfg.GeminiAPICfg.ProName)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			continue
		}
		geminiClients = append(geminiClients, *client)
	}
	if len(geminiClients) == 0 {
		slog.Warn("No Gemini clients available, extraction will run degraded")
	}
	selector := gemini.NewGeminiClientSelector(geminiClients)

	// Decision events are best-effort: a missing broker degrades
	// notifications, not adjudication.
	var publisher services.DecisionPublisher
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Error("Failed to connect to RabbitMQ, decision events disabled", "error", err)
	} else {
		defer rabbitConn.Close()
		publisher = event.NewDecisionPublisher(rabbitConn)
	}

	// repositories
	claimRepo := repository.NewClaimRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	extractionRepo := repository.NewExtractionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// services
	extractor := services.NewGeminiExtractor(minioClient, selector)
	intakeService := services.NewIntakeService(docRepo, extractionRepo, extractor)
	validationService := services.NewValidationService(claimRepo, policyRepo, resultRepo, auditRepo)
	fraudService := services.NewFraudService(claimRepo, resultRepo, auditRepo, redisClient)
	settlementService := services.NewSettlementService(claimRepo, resultRepo, auditRepo, selector)
	pipelineService := services.NewPipelineService(
		claimRepo, policyRepo, extractionRepo, resultRepo, auditRepo, redisClient,
		intakeService, validationService, fraudService, settlementService, publisher)

	// worker pool for asynchronous runs
	poolCtx, poolCancel := context.WithCancel(context.Background())
	pool := worker.NewWorkingPool(cfg.PipelineCfg.NumWorkers, cfg.PipelineCfg.QueueSize)
	var poolWg sync.WaitGroup
	poolWg.Add(1)
	go pool.Start(poolCtx, &poolWg)

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		if !postgres.DBStatus {
			return c.Status(fiber.StatusServiceUnavailable).SendString("Claims service degraded: database unavailable")
		}
		return c.Status(fiber.StatusOK).SendString("Claims service is healthy")
	})

	pipelineHandler := handlers.NewPipelineHandler(pipelineService, claimRepo, auditRepo, pool)
	pipelineHandler.Register(app)

	go func() {
		slog.Info("Starting claims-service", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutdown signal received")
	// Stop accepting HTTP requests before draining the pool, so no async run
	// can be submitted to a pool that is shutting down.
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	poolCancel()
	poolWg.Wait()
	slog.Info("Claims service stopped")
}
