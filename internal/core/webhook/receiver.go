package webhook

import (
	"encoding/json"
	"net/http"

	"compressor/internal/logger"

	"github.com/gofiber/fiber/v2"
)

// Receiver accepts webhook deliveries and logs them. It does not validate
// the payload shape.
type Receiver struct {
	log *logger.Logger
}

func NewReceiver() *Receiver {
	return &Receiver{log: logger.New("WebhookReceiver")}
}

func (r *Receiver) Register(app *fiber.App) {
	app.Post("/webhook", r.HandleWebhook)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "pong"})
	})
}

func (r *Receiver) HandleWebhook(c *fiber.Ctx) error {
	var payload interface{}
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		r.log.LogErrorf("Error receiving webhook: %v", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	r.log.Info().
		Str("event", c.Get("X-Compressor-Event")).
		Str("job_id", c.Get("X-Compressor-Job-ID")).
		RawJSON("payload", c.Body()).
		Msg("Webhook received")
	return c.JSON(fiber.Map{"status": "success"})
}
