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

	"seafood-order-service/config"
	"seafood-order-service/internal/api"
	"seafood-order-service/internal/auth"
	"seafood-order-service/internal/broker"
	"seafood-order-service/internal/redisclient"
	"seafood-order-service/internal/service"
	"seafood-order-service/internal/store"
	"seafood-order-service/internal/util"
	"seafood-order-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting seafood order service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.Bool("strict_status_transitions", cfg.Business.StrictStatusTransitions))

	tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, store.Options{
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		StatementTimeout: cfg.Database.StatementTimeout,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Schema applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	orderService := service.NewOrderService(service.Dependencies{
		Tx:          db,
		Catalog:     db,
		Orders:      db,
		Publisher:   eventPublisher,
		Idempotency: redisClient,
		Cache:       redisClient,
	}, service.Config{
		TxTimeout:         cfg.Business.OrderTxTimeout,
		IdempotencyTTL:    cfg.Business.IdempotencyTTL,
		PendingTTL:        cfg.Business.IdempotencyPendingTTL,
		AnalyticsTTL:      cfg.Business.AnalyticsCacheTTL,
		StrictTransitions: cfg.Business.StrictStatusTransitions,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	projectionConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	projectionWorker := worker.NewProjectionWorker(projectionConsumer, redisClient)
	go func() {
		if err := projectionWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			logger.Error("Projection worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(
		orderService,
		auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		map[string]api.Pinger{"postgres": db, "redis": redisClient},
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := projectionWorker.Stop(); err != nil {
		logger.Warn("Error stopping projection worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
