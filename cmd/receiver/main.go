package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"compressor/internal/config"
	"compressor/internal/core/webhook"
)

func main() {
	cfg := config.Load()
	log.Printf("[receiver] starting at %s (env=%s)\n", cfg.ReceiverAddr, cfg.AppEnv)

	app := fiber.New(fiber.Config{AppName: "Compressor Webhook Receiver"})
	webhook.NewReceiver().Register(app)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.ReceiverAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
