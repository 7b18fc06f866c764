package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/corrigo/corrigo-api/internal/config"
	"github.com/corrigo/corrigo-api/internal/database"
	"github.com/corrigo/corrigo-api/internal/handler"
	"github.com/corrigo/corrigo-api/internal/middleware"
	"github.com/corrigo/corrigo-api/internal/models"
	"github.com/corrigo/corrigo-api/internal/pipeline"
	"github.com/corrigo/corrigo-api/internal/queue"
	"github.com/corrigo/corrigo-api/internal/repository"
	"github.com/corrigo/corrigo-api/internal/router"
	"github.com/corrigo/corrigo-api/internal/service"
	"github.com/corrigo/corrigo-api/internal/similarity"
	"github.com/corrigo/corrigo-api/internal/storage"
	"github.com/corrigo/corrigo-api/pkg/ai"
	cloud "github.com/corrigo/corrigo-api/pkg/cloudinary"
	"github.com/corrigo/corrigo-api/pkg/extract"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Exercise{}, &models.Submission{}, &models.Correction{}, &models.FeedbackEvent{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	localStore, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to initialise local storage: %v", err)
	}
	files := storage.NewResolver(localStore, storage.NewHTTPStore(30*time.Second))

	// Cloudinary is optional; local disk serves development setups.
	var uploader service.FileUploader = localStore
	if cfg.CloudinaryCloudName != "" {
		cloudUploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploader = cloudUploader
	}

	grader, err := buildGrader(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create grader: %v", err)
	}

	extractor := extract.NewToolExtractor(extract.Config{
		Tool:      cfg.ExtractTool,
		Timeout:   cfg.ExtractTimeout,
		Attempts:  cfg.ExtractRetries,
		MinLength: cfg.MinTextLength,
		Logger:    logger,
	})

	engine := similarity.NewEngine(similarity.Options{
		Threshold: cfg.SimilarityThreshold,
		MinWords:  cfg.MinComparableWords,
		MaxPeers:  cfg.PeerCap,
	})

	validate := validator.New(validator.WithRequiredStructEnabled())

	exerciseRepo := repository.NewExerciseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	correctionRepo := repository.NewCorrectionRepository(db)
	feedbackRepo := repository.NewFeedbackEventRepository(db)
	pipelineStore := repository.NewPipelineStore(db)

	orchestrator := pipeline.NewOrchestrator(pipelineStore, files, extractor, grader, engine, pipeline.NewRedisLocker(redisClient), pipeline.Config{
		SoftLimit: cfg.PipelineSoftLimit,
		PeerCap:   cfg.PeerCap,
	}, logger)

	publisher := queue.NewPublisher(natsConn, queue.DefaultSubject, logger)
	worker := queue.NewWorker(natsConn, orchestrator, queue.WorkerConfig{
		Concurrency: cfg.WorkerCount,
		MaxAttempts: cfg.PipelineAttempts,
		BackoffBase: cfg.RetryBackoffBase,
		HardLimit:   cfg.PipelineHardLimit,
	}, logger)

	if err := worker.Start(); err != nil {
		log.Fatalf("failed to start worker pool: %v", err)
	}

	exerciseService := service.NewExerciseService(exerciseRepo, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, exerciseRepo, validate, uploader, publisher, logger)
	correctionService := service.NewCorrectionService(correctionRepo, feedbackRepo, redisClient, cfg.CorrectionCacheTTL, validate, logger)

	exerciseHandler := handler.NewExerciseHandler(exerciseService, validate, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, correctionService, validate, logger)
	correctionHandler := handler.NewCorrectionHandler(correctionService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExerciseHandler:   exerciseHandler,
		SubmissionHandler: submissionHandler,
		CorrectionHandler: correctionHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, worker)
}

func buildGrader(cfg config.Config, logger zerolog.Logger) (ai.Grader, error) {
	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAIGrader(ai.OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			MaxPromptChars: cfg.MaxPromptChars,
			Logger:         logger,
		})
	default:
		return ai.NewOllamaGrader(ai.OllamaConfig{
			BaseURL:        cfg.OracleURL,
			Model:          cfg.OracleModel,
			Timeout:        cfg.OracleTimeout,
			MaxPromptChars: cfg.MaxPromptChars,
			Logger:         logger,
		})
	}
}

func waitForShutdown(app *fiber.App, worker *queue.Worker) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if err := worker.Stop(ctx); err != nil {
		log.Printf("worker pool did not stop cleanly: %v", err)
	}

	log.Println("server stopped")
}
