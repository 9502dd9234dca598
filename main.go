package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"vidscribe/cache"
	"vidscribe/config"
	"vidscribe/enrich"
	"vidscribe/handlers"
	"vidscribe/logger"
	"vidscribe/media"
	"vidscribe/provider"
	"vidscribe/segmenter"
	"vidscribe/services/pipeline"
	"vidscribe/validation"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	fiberLogConfig, err := logger.FiberConfig(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize access log: %v", err)
	}

	ctx := context.Background()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize cache store: %v", err)
	}

	resultCache := cache.New(store, cfg.Cache.TTL, appLogger)
	if err := resultCache.Rehydrate(ctx); err != nil {
		appLogger.Warn().Err(err).Msg("Cache rehydration failed, starting cold")
	}

	acquirer, err := media.NewAcquirer(media.Config{
		ScratchDir:    cfg.ScratchDir,
		YTDLPPath:     cfg.Media.YTDLPPath,
		FFmpegPath:    cfg.Media.FFmpegPath,
		FFprobePath:   cfg.Media.FFprobePath,
		AudioBitrate:  cfg.Media.AudioBitrate,
		MaxFileSizeMB: cfg.Media.MaxFileSizeMB,
	}, media.ExecRunner{}, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize audio acquirer: %v", err)
	}

	providerClient := provider.NewClient(provider.Config{
		APIKey:          cfg.Provider.APIKey,
		BaseURL:         cfg.Provider.BaseURL,
		UseWebhook:      cfg.Provider.UseWebhook,
		PublicBaseURL:   cfg.PublicBaseURL,
		WebhookSecret:   cfg.Provider.WebhookSecret,
		Language:        cfg.Provider.Language,
		SpeedProfile:    cfg.Provider.SpeedProfile,
		PollMaxAttempts: cfg.Provider.PollMaxAttempts,
		AwaitBudget:     cfg.Provider.AwaitBudget,
	}, appLogger)

	segmentProcessor := segmenter.NewProcessor(providerClient, acquirer, segmenter.Config{
		SegmentSeconds: cfg.Media.SegmentDuration.Seconds(),
	}, appLogger)

	enricher := enrich.NewEnricher(enrich.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, appLogger)

	validator := validation.NewValidator()

	pipelineService := pipeline.NewService(
		validator,
		acquirer,
		providerClient,
		segmentProcessor,
		enricher,
		resultCache,
		pipeline.Config{
			SegmentThresholdSeconds: cfg.Media.SegmentThreshold.Seconds(),
		},
		appLogger,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: !cfg.Debug,
		StrictRouting:         true,
		CaseSensitive:         true,
		AppName:               "vidscribe " + cfg.Version,
	})

	setupMiddleware(app, cfg, fiberLogConfig)

	transcribeHandler := handlers.NewTranscribeHandler(pipelineService, validator)
	webhookHandler := handlers.NewWebhookHandler(providerClient, cfg.Provider.WebhookSecret, appLogger)

	app.Post("/transcribe", transcribeHandler.Transcribe)
	app.Post("/webhook/transcription/:sessionId", webhookHandler.HandleNotification)
	app.Get("/health", handlers.HealthCheck)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLogger.Info().Msg("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.Error().Err(err).Msg("Server shutdown error")
		}
		if store != nil {
			if err := store.Close(); err != nil {
				appLogger.Error().Err(err).Msg("Cache store shutdown error")
			}
		}
	}()

	serverAddr := ":" + cfg.ServerPort
	if cfg.Debug {
		appLogger.Info().Str("addr", serverAddr).Msg("Server starting")
	}

	if err := app.Listen(serverAddr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return cache.NewSQLiteStore(ctx, cfg.Cache.Path)
	case "s3":
		return cache.NewS3Store(ctx, cache.S3Config{
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
			Region:    cfg.Cache.S3.Region,
			Endpoint:  cfg.Cache.S3.Endpoint,
			Bucket:    cfg.Cache.S3.Bucket,
		})
	default:
		// "none" runs memory-only.
		return nil, nil
	}
}

func setupMiddleware(app *fiber.App, cfg *config.Config, logConfig *fiberLogger.Config) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	app.Use(fiberLogger.New(*logConfig))

	app.Use(cors.New())

	if cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded",
				})
			},
		}))
	}

	app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))

	app.Use(etag.New())
}
