package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	httpapi "github.com/i474232898/weather-tables/internal/api/http"
	"github.com/i474232898/weather-tables/internal/config"
	"github.com/i474232898/weather-tables/internal/metrics"
	"github.com/i474232898/weather-tables/internal/scheduler"
	"github.com/i474232898/weather-tables/internal/store"
	"github.com/i474232898/weather-tables/internal/weather"
	"github.com/i474232898/weather-tables/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	m := metrics.NewCollector("weather_tables")

	blobs, err := newBlobStore(cfg, log)
	if err != nil {
		log.Error("failed to initialise blob store", "backend", cfg.BlobBackend, "error", err)
		os.Exit(1)
	}
	checkpoints := store.NewCheckpointer(blobs, cfg.BlobBucket, cfg.BlobPrefix, m)

	// Station client: one request per query, optional circuit breaker.
	stations := providers.NewCEHubStationClient(providers.CEHubConfig{
		URL:            cfg.StationURL,
		APIKey:         cfg.StationAPIKey,
		Timeout:        cfg.HTTPTimeout,
		BreakerEnabled: cfg.BreakerEnabled,
		Logger:         log.With("component", "cehub"),
	})

	service := weather.NewService(stations, checkpoints, m, log, weather.NormalizeOptions{})

	// Scheduler that periodically checkpoints station data.
	if cfg.CheckpointEnabled() {
		sched := scheduler.New(scheduler.JobConfig{
			Interval:     cfg.CheckpointInterval,
			Stations:     cfg.CheckpointStations,
			Variables:    cfg.CheckpointVariables,
			Frequency:    cfg.CheckpointFrequency,
			LookbackDays: cfg.CheckpointLookbackDays,
			Timeout:      2 * cfg.HTTPTimeout,
		}, service, m, log)
		if err := sched.Start(); err != nil {
			log.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-tables",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"service":     "weather-tables",
			"blobBackend": cfg.BlobBackend,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, m)

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

func newBlobStore(cfg *config.AppConfig, log *slog.Logger) (store.BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BackendPostgres:
		pg := store.NewPostgresStore(cfg.DatabaseURL)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	case config.BackendMemory:
		log.Warn("using in-memory blob store; checkpoints are lost on restart")
		return store.NewMemoryStore(cfg.MemoryMaxObjects), nil
	default:
		return store.NewS3Store(store.S3Config{
			Region:    cfg.AWSRegion,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
			Endpoint:  cfg.S3Endpoint,
		}), nil
	}
}
