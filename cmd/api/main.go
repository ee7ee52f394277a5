package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/sentience/backend/internal/api/handlers"
	"github.com/sentience/backend/internal/cache/redis"
	"github.com/sentience/backend/internal/dashboard"
	"github.com/sentience/backend/internal/ingestion"
	"github.com/sentience/backend/internal/metrics"
	"github.com/sentience/backend/internal/middleware/ratelimit"
	"github.com/sentience/backend/internal/middleware/security"
	"github.com/sentience/backend/internal/middleware/validation"
	"github.com/sentience/backend/internal/nlp/sentiment"
	"github.com/sentience/backend/internal/nlp/tokenizer"
	"github.com/sentience/backend/internal/storage/sqlite"
	"github.com/sentience/backend/pkg/config"
	appLogger "github.com/sentience/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting review analytics API server")
	metrics.Init()

	ctx := context.Background()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema(ctx)
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	readiness := map[string]handlers.Pinger{"sqlite": sqliteClient}

	var cache dashboard.Cache
	var cacheKey dashboard.KeyFunc
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		cache, cacheKey = redisClient, redis.Key
		readiness["redis"] = redisClient
	}

	var importer dashboard.Importer
	if cfg.LLM.APIKey != "" {
		tok := tokenizer.NewProse(tokenizer.Options{
			ExtraStopwords: cfg.Tokenizer.ExtraStopwords,
			MinLength:      cfg.Tokenizer.MinTokenLength,
		})
		classifier := sentiment.NewOpenAI(sentiment.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			BatchSize:   cfg.LLM.BatchSize,
			Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		})
		importer = ingestion.NewProcessor(tok, classifier, sqliteClient)
	} else {
		appLogger.Warn("No LLM API key configured, imports are disabled")
	}

	service := dashboard.NewService(dashboard.Config{
		DefaultLookbackDays: cfg.Dashboard.DefaultLookbackDays,
		TopNgrams:           cfg.Dashboard.TopNgrams,
		MaxEvidence:         cfg.Dashboard.MaxEvidence,
		CacheTTL:            time.Duration(cfg.Redis.TTLSec) * time.Second,
	}, importer, cache, cacheKey)

	if err := loadWorkingSet(ctx, cfg, service, sqliteClient); err != nil {
		appLogger.Fatal("Failed to load working set", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Logger:            appLogger.Named("ratelimit"),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))
	app.Use(metrics.Middleware())

	app.Get("/metrics", metrics.MetricsHandler())

	healthHandler := handlers.NewHealthHandler(readiness)
	dashboardHandler := handlers.NewDashboardHandler(service)
	importHandler := handlers.NewImportHandler(service, cfg.Data.MaxUploadBytes)
	wsHandler := handlers.NewWebSocketHandler(service)

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	api.Use("/ws", handlers.RequireUpgrade)
	api.Get("/ws/evidence", websocket.New(wsHandler.HandleConnection))

	api.Use(limiter.Middleware())
	api.Use(validation.Middleware(validation.Config{Logger: appLogger.Named("validation")}))

	api.Get("/meta", dashboardHandler.GetMeta)
	api.Get("/timescales", dashboardHandler.GetTimescales)
	api.Get("/timeseries", dashboardHandler.GetTimeSeries)
	api.Get("/kpis", dashboardHandler.GetKPIs)
	api.Get("/ngrams", dashboardHandler.GetNgrams)
	api.Get("/evidence", dashboardHandler.GetEvidence)
	api.Get("/ratings", dashboardHandler.GetRatings)
	api.Post("/reviews/import", importHandler.ImportReviews)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// loadWorkingSet imports the configured CSV when asked to, and otherwise
// serves the working set stored by the last import.
func loadWorkingSet(ctx context.Context, cfg *config.Config, service *dashboard.Service, store *sqlite.Client) error {
	if cfg.Data.ImportOnStart {
		f, err := os.Open(cfg.Data.CSVPath)
		if err != nil {
			return fmt.Errorf("failed to open review export: %w", err)
		}
		defer f.Close()

		_, err = service.Import(ctx, cfg.Data.CSVPath, f)
		return err
	}

	records, err := store.LoadReviews(ctx)
	if err != nil {
		return err
	}
	imp, err := store.LatestImport(ctx)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return err
	}
	service.Load(records, imp)
	return nil
}
