package csvjob

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"compressor/internal/core/job"
	"compressor/internal/logger"
	"compressor/internal/platform/tasks"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	svc       *Service
	job       job.Store
	queue     Queue
	validate  *validator.Validate
	baseURL   string
	maxUpload int64
	log       *logger.Logger
}

// NewHandler serves the upload, status and result routes. An empty baseURL
// means output urls are built from each upload request's own base url.
func NewHandler(svc *Service, store job.Store, queue Queue, baseURL string, maxUploadBytes int64) *Handler {
	return &Handler{
		svc:       svc,
		job:       store,
		queue:     queue,
		validate:  validator.New(),
		baseURL:   baseURL,
		maxUpload: maxUploadBytes,
		log:       logger.New("CSVJobHandler"),
	}
}

type upload struct {
	Filename string `validate:"required,max=255"`
	Size     int64  `validate:"gt=0,ltefield=MaxSize"`
	MaxSize  int64
}

// HandleUpload accepts a multipart "file" field or a raw text/csv body.
func (h *Handler) HandleUpload(c *fiber.Ctx) error {
	data, err := h.readUpload(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	id, err := h.svc.Enqueue(c.UserContext(), string(data), h.requestBaseURL(c))
	if err != nil {
		h.log.LogErrorf("Error uploading CSV: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload CSV"})
	}
	return c.JSON(fiber.Map{"task_id": id})
}

func (h *Handler) readUpload(c *fiber.Ctx) ([]byte, error) {
	var (
		u    = upload{MaxSize: h.maxUpload}
		data []byte
	)

	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	switch {
	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("missing form field \"file\"")
		}
		u.Filename, u.Size = fh.Filename, fh.Size
		if err := h.check(u); err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if data, err = io.ReadAll(f); err != nil {
			return nil, err
		}
	case strings.HasPrefix(ct, "text/csv"), strings.HasPrefix(ct, fiber.MIMETextPlain):
		data = c.Body()
		u.Filename, u.Size = "body.csv", int64(len(data))
		if err := h.check(u); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("expected multipart/form-data with a \"file\" field or a text/csv body")
	}

	if !utf8.Valid(data) {
		return nil, errors.New("file is not valid UTF-8")
	}
	return data, nil
}

func (h *Handler) check(u upload) error {
	err := h.validate.Struct(u)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch e := verrs[0]; {
		case e.Field() == "Filename":
			return errors.New("file name is required")
		case e.Tag() == "gt":
			return errors.New("file is empty")
		case e.Tag() == "ltefield":
			return errors.New("file exceeds maximum allowed size")
		}
	}
	return err
}

func (h *Handler) requestBaseURL(c *fiber.Ctx) string {
	if h.baseURL != "" {
		return h.baseURL
	}
	return c.BaseURL() + "/"
}

// HandleStatus reports the queue's view of a task.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	id := c.Params("taskId")
	info, err := h.queue.Status(tasks.QueueDefault, id)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"task_id": id, "status": "Not Found"})
		}
		h.log.LogErrorf("status of %s: %v", id, err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"task_id": id, "error": "Failed to read task status"})
	}

	resp := fiber.Map{"task_id": id, "status": info.State}
	switch info.State {
	case tasks.StateSuccess:
		if len(info.Result) > 0 {
			resp["data"] = json.RawMessage(info.Result)
		}
	case tasks.StateFailure:
		resp["error"] = info.Error
	}
	return c.JSON(resp)
}

// HandleResult downloads a completed job as CSV.
func (h *Handler) HandleResult(c *fiber.Ctx) error {
	id := c.Params("taskId")
	j, err := h.job.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"task_id": id, "status": "Not Found"})
		}
		h.log.LogErrorf("result of %s: %v", id, err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"task_id": id, "error": "Failed to read job"})
	}

	switch j.Status {
	case job.StatusRunning:
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"task_id": id, "status": j.Status})
	case job.StatusFailed:
		return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{"task_id": id, "status": j.Status, "error": j.Error})
	}

	out, err := RenderCSV(j.Results)
	if err != nil {
		h.log.LogErrorf("render result of %s: %v", id, err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"task_id": id, "error": "Failed to render result"})
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=result_"+id+".csv")
	return c.Status(http.StatusOK).Send(out)
}
