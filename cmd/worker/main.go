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
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
	"github.com/mentorpal/mentor-upload-service/internal/transcribe"
	"github.com/mentorpal/mentor-upload-service/internal/usecase"
)

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

	if cfg.Worker.StageName == "" {
		return fmt.Errorf("STAGE_NAME must be set to one of: transcode-web, transcode-mobile, transcribe, trim-upload")
	}
	stage := repository.StageName(cfg.Worker.StageName)

	if err := os.MkdirAll(cfg.Worker.TranscodeWorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

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

	toolkit := transcoder.NewFFmpegToolkit(transcoder.DefaultFFmpegConfig())

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	switch stage {
	case repository.StageTrimUpload:
		// trim-upload is not a fan-out StageHandler: it consumes its own
		// TrimJob addressed by the coordinator's trim_existing_upload
		// endpoint, never the ingestion Job (spec.md §4.5, §4.6).
		runner := usecase.NewTrimRunner(toolkit, storageClient, metadataClient, cfg.Server.StaticURLBase, cfg.Worker.TranscodeWorkDir)
		go func() {
			logger.Info("starting worker", slog.String("stage", string(stage)))
			err := queueClient.ConsumeTrimJobs(ctx, func(job repository.TrimJob) error {
				wg.Add(1)
				defer wg.Done()
				return runner.Handle(ctx, job)
			})
			if err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("consumer error: %w", err)
			}
		}()

	default:
		handler, err := newStageHandler(ctx, stage, cfg, toolkit, storageClient, metadataClient)
		if err != nil {
			return err
		}
		runner := usecase.NewStageRunner(metadataClient, storageClient, usecase.StageRunnerConfig{WorkDirRoot: cfg.Worker.TranscodeWorkDir})
		go func() {
			logger.Info("starting worker", slog.String("stage", string(stage)))
			err := queueClient.ConsumeJobs(ctx, stage, func(job repository.Job) error {
				wg.Add(1)
				defer wg.Done()
				return runner.Handle(ctx, handler, job)
			})
			if err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("consumer error: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
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

	logger.Info("worker stopped")
	return nil
}

func newStageHandler(ctx context.Context, stage repository.StageName, cfg *config.Config, toolkit *transcoder.FFmpegToolkit, storageClient *storage.Client, metadataClient repository.MetadataClient) (usecase.StageHandler, error) {
	switch stage {
	case repository.StageTranscodeWeb:
		return usecase.NewWebHandler(toolkit, storageClient, cfg.Server.StaticURLBase), nil
	case repository.StageTranscodeMobile:
		return usecase.NewMobileHandler(toolkit, storageClient, cfg.Server.StaticURLBase), nil
	case repository.StageTranscribe:
		transcribeClient, err := transcribe.NewClient(ctx, transcribe.ClientConfig{
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			OutputBucket:    cfg.S3.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create transcribe client: %w", err)
		}
		return usecase.NewTranscribeHandler(toolkit, storageClient, metadataClient, transcribeClient, cfg.Server.StaticURLBase, cfg.S3.Bucket), nil
	default:
		return nil, fmt.Errorf("unrecognized STAGE_NAME %q", stage)
	}
}
