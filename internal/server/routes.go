package server

import (
	"compressor/internal/core/compress"
	"compressor/internal/core/csvjob"
	"compressor/internal/core/job"
	"compressor/internal/health"
	"compressor/internal/platform/artifacts"

	"github.com/gofiber/fiber/v2"
)

type Dependencies struct {
	CSVJob         *csvjob.Service
	Job            job.Store
	Queue          csvjob.Queue
	Artifacts      artifacts.Store
	Checks         []health.Check
	PublicBaseURL  string
	MaxUploadBytes int64
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	// Health endpoints
	healthHandler := health.NewHealthHandler(d.Checks...)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)
	app.Get("/ping", health.HandlePing)
	app.Get("/", health.HandlePing)

	csvHandler := csvjob.NewHandler(d.CSVJob, d.Job, d.Queue, d.PublicBaseURL, d.MaxUploadBytes)
	app.Post("/upload", csvHandler.HandleUpload)
	app.Get("/status/:taskId", csvHandler.HandleStatus)
	app.Get("/result/:taskId", csvHandler.HandleResult)

	compressedHandler := compress.NewHandler(d.Artifacts)
	app.Get("/compressed/:filename", compressedHandler.HandleGet)

	return healthHandler
}
