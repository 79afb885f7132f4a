package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/mentorpal/mentor-upload-service/internal/config"
	"github.com/mentorpal/mentor-upload-service/internal/domain/repository"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/queue"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/storage"
	"github.com/mentorpal/mentor-upload-service/internal/metadata"
	"github.com/mentorpal/mentor-upload-service/internal/usecase"
)

// transfer-worker runs C7's finalization stage (spec.md §4.7): answer
// transfer and mentor import, both published to the same "finalization"
// queue, kept as its own process since it has no work directory and no
// StageHandler shape to share with cmd/worker.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to S3: %w", err)
	}
	logger.Info("connected to S3")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	baseMetadataClient := metadata.NewClient(metadata.DefaultClientConfig(cfg.Metadata.Endpoint, cfg.Metadata.APIKey))
	metadataClient := metadata.NewCachedClient(baseMetadataClient, redisClient, cfg.Redis.TTL)

	transferSvc := usecase.NewTransferService(metadataClient, storageClient, cfg.Server.StaticURLBase)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting transfer worker, consuming finalization jobs")
		err := queueClient.ConsumeTransferJobs(ctx, func(job repository.TransferJob) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing transfer job", slog.String("kind", job.Kind), slog.String("mentor", job.MentorID))
			if err := transferSvc.Handle(ctx, job); err != nil {
				logger.Error("transfer job failed", slog.String("kind", job.Kind), slog.String("mentor", job.MentorID), slog.String("error", err.Error()))
				return err
			}
			logger.Info("transfer job completed", slog.String("kind", job.Kind), slog.String("mentor", job.MentorID))
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down transfer worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("transfer worker stopped")
	return nil
}
