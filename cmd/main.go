package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"compressor/internal/config"
	"compressor/internal/core/compress"
	"compressor/internal/core/csvjob"
	"compressor/internal/core/fetch"
	"compressor/internal/core/webhook"
	"compressor/internal/health"
	"compressor/internal/logger"
	rds "compressor/internal/platform/redis"
	tasks "compressor/internal/platform/tasks"
	"compressor/internal/server"
	"compressor/internal/worker"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("[compressor] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.AppEnv}); err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
		// Flush buffered events before the program terminates.
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	defer taskClient.Close()
	asynqServer := worker.NewServer(redisSvc, cfg.WorkerConcurrency, logger.New("Asynq"))

	checks := []health.Check{{Name: "redis", Fn: redisSvc.HealthCheck}}

	jobStore, storeChecks, closeStore, err := openJobStore(ctx, cfg, redisSvc)
	if err != nil {
		log.Fatalf("job store: %v", err)
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	artifactStore, err := openArtifactStore(ctx, cfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}

	// Core services
	csvSvc := csvjob.NewService(
		jobStore,
		taskClient,
		fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, MaxBytes: cfg.FetchMaxBytes}),
		compress.NewService(artifactStore, cfg.CompressQuality),
		webhook.NewNotifier(webhook.Options{Timeout: cfg.WebhookTimeout, Secret: cfg.WebhookSecret}),
		csvjob.Config{
			WebhookURL:    cfg.WebhookURL,
			TaskTimeout:   cfg.TaskTimeout,
			TaskRetention: cfg.TaskRetention,
		},
	)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(tasks.TaskTypeProcessCSV, csvSvc.HandleTask)

	// Start worker
	if err := asynqServer.Start(mux.Mux()); err != nil {
		log.Fatalf("[worker] start: %v", err)
	}

	maxUpload := int64(cfg.MaxUploadMB) << 20

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName:   "Compressor",
		BodyLimit: int(maxUpload) + 1<<20,
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	healthHandler := server.RegisterRoutes(app, server.Dependencies{
		CSVJob:         csvSvc,
		Job:            jobStore,
		Queue:          taskClient,
		Artifacts:      artifactStore,
		Checks:         checks,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: maxUpload,
	})
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
