package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/floor-guesser/internal/config"
	"github.com/floor-guesser/internal/game"
	"github.com/floor-guesser/internal/handler"
	"github.com/floor-guesser/internal/kafka"
	"github.com/floor-guesser/internal/postgres"
	"github.com/floor-guesser/internal/redis"
	"github.com/floor-guesser/internal/service"
	"github.com/floor-guesser/internal/websocket"
	"github.com/floor-guesser/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Sessions live in Redis when it is enabled so any instance can serve a
	// game; otherwise they stay in process.
	var sessions game.SessionStore = game.NewMemoryStore(cfg.Game.SessionTTL)
	var cache *redis.BestScoreCache
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		client, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		logger.Info("connected to Redis")

		cache = redis.NewBestScoreCache(client, logger)
		sessions = redis.NewSessionStore(client, cfg.Game.SessionTTL)
	}

	gameService := service.NewGameService(postgresRepo, sessions, cfg, logger)
	gameService.SetHub(wsHub)

	var syncWorker *worker.SyncWorker
	if cache != nil {
		gameService.SetCache(cache)

		syncWorker = worker.NewSyncWorker(postgresRepo, cache, &cfg.Sync, logger)

		logger.Info("rebuilding best score cache from database")
		if err := syncWorker.RunOnce(ctx); err != nil {
			logger.Warn("failed to rebuild cache on startup", "error", err)
		}

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	}

	var kafkaConsumer *kafka.Consumer
	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka",
			"brokers", cfg.Kafka.Brokers,
			"submissions_topic", cfg.Kafka.SubmissionsTopic,
			"events_topic", cfg.Kafka.EventsTopic,
		)

		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, continuing without events", "error", err)
		} else {
			gameService.SetPublisher(kafkaProducer)
		}

		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, gameService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else if err := kafkaConsumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
			kafkaConsumer = nil
		} else {
			logger.Info("Kafka consumer started successfully")
		}
	}

	httpHandler := handler.NewHandler(gameService, wsHub, cfg.Server.UploadsDir, logger)
	httpHandler.AddReadinessCheck(postgresRepo)
	if cache != nil {
		httpHandler.AddReadinessCheck(cache)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "uploads_dir", cfg.Server.UploadsDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	wsHub.Stop()

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.Error("failed to close Kafka producer", "error", err)
		}
	}

	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	logger.Info("server stopped")
}
