package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/mentorpal/mentor-upload-service/internal/api/handler"
	"github.com/mentorpal/mentor-upload-service/internal/api/middleware"
	"github.com/mentorpal/mentor-upload-service/internal/config"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/queue"
	"github.com/mentorpal/mentor-upload-service/internal/infrastructure/storage"
	"github.com/mentorpal/mentor-upload-service/internal/metadata"
	"github.com/mentorpal/mentor-upload-service/internal/transcoder"
	"github.com/mentorpal/mentor-upload-service/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

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
	logger.Info("connected to S3", slog.String("bucket", storageClient.Bucket()))

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

	dispatchSvc := usecase.NewDispatchService(metadataClient, storageClient, queueClient, toolkit, cfg.Server.StaticURLBase)
	coordinatorSvc := usecase.NewCoordinatorService(metadataClient, storageClient, queueClient, toolkit, cfg.Server.StaticURLBase, cfg.Worker.TranscodeWorkDir)

	uploadHandlers := handler.NewUploadHandlers(dispatchSvc, coordinatorSvc, metadataClient, storageClient, queueClient, cfg.Worker.UploadRoot, cfg.Server.StaticURLBase, cfg.Server.ForceHTTPS())

	r := setupRouter(logger, uploadHandlers, cfg.Auth.JWTSecret)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, h *handler.UploadHandlers, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Get("/upload/ping", h.Ping)

	r.Route("/upload", func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtSecret))

		r.With(middleware.RequireEditMentor(middleware.ExtractMentorIDFromBody)).Post("/answer", h.UploadAnswer)
		r.With(middleware.RequireEditMentor(middleware.ExtractMentorIDFromBody)).Post("/answer/trim_existing_upload", h.TrimExistingUpload)
		r.With(middleware.RequireEditMentor(middleware.ExtractMentorIDFromBody)).Post("/answer/regen_vtt", h.RegenVTT)
		r.With(middleware.RequireEditMentor(middleware.ExtractMentorIDFromBody)).Post("/answer/cancel", h.Cancel)
		r.With(middleware.RequireEditMentor(middleware.ExtractMentorIDFromBody)).Get("/answer/status/{mentor}/{question}", statusHandler(h))

		r.With(middleware.RequireManageContent).Post("/transfer", h.TransferAnswer)
		r.With(middleware.RequireManageContent).Post("/transfer/mentor", h.ImportMentor)
		r.With(middleware.RequireEditMentor(extractMentorIDFromForm)).Post("/thumbnail", h.Thumbnail)
	})

	return r
}

func statusHandler(h *handler.UploadHandlers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Status(w, r, chi.URLParam(r, "mentor"), chi.URLParam(r, "question"))
	}
}

// extractMentorIDFromForm reads "mentor" from a plain multipart form field
// (the thumbnail route has no JSON "body" part, per spec.md §6).
func extractMentorIDFromForm(r *http.Request) (string, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", fmt.Errorf("malformed multipart body")
	}
	mentorID := r.FormValue("mentor")
	if mentorID == "" {
		return "", fmt.Errorf("missing required param mentor")
	}
	return mentorID, nil
}
