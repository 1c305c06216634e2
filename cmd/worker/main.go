package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/Canvas-Copilot/backend/internal/config"
	"github.com/Canvas-Copilot/backend/internal/database"
	"github.com/Canvas-Copilot/backend/internal/queue"
	"github.com/Canvas-Copilot/backend/internal/service"
	"github.com/Canvas-Copilot/backend/internal/worker"
	"github.com/Canvas-Copilot/backend/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName+" worker"))
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	generator, err := buildGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create model client: %v", err)
	}

	taskQueue := queue.NewRedisTaskQueue(redisClient, queue.RedisQueueConfig{
		Namespace:    cfg.QueueNamespace,
		LeaseTimeout: cfg.LeaseTimeout,
	}, logger)
	events := service.NewTaskEventPublisher(natsConn, logger)
	assembler := service.NewFeedbackService(generator, logger)

	w := worker.New(taskQueue, assembler, events, worker.Config{
		Concurrency:     cfg.WorkerConcurrency,
		MaxAttempts:     cfg.MaxAttempts,
		RetryDelay:      cfg.RetryDelay,
		PollInterval:    cfg.PollInterval,
		JanitorInterval: cfg.JanitorInterval,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w.Start(ctx)

	<-ctx.Done()
	w.Stop()
	log.Println("worker stopped")
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, error) {
	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.ModelTimeout,
			Logger:  logger,
		})
	default:
		return ai.NewOllamaGenerator(ai.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.ModelTimeout,
			Logger:  logger,
		})
	}
}
