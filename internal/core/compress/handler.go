package compress

import (
	"errors"
	"net/http"
	"net/url"

	"compressor/internal/logger"
	"compressor/internal/platform/artifacts"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	store artifacts.Store
	log   *logger.Logger
}

func NewHandler(store artifacts.Store) *Handler {
	return &Handler{store: store, log: logger.New("CompressedHandler")}
}

// HandleGet serves GET /compressed/:filename.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || !artifacts.ValidName(name) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
	}

	data, err := h.store.Open(c.UserContext(), name)
	if err != nil {
		if errors.Is(err, artifacts.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "File not found"})
		}
		h.log.LogErrorf("open artifact %s: %v", name, err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read file"})
	}

	c.Set(fiber.HeaderContentType, mimetype.Detect(data).String())
	return c.Status(http.StatusOK).Send(data)
}
