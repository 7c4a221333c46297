package csvjob

import (
	"context"
	"time"

	"compressor/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

// FileNotAccessible replaces the output url of an image that could not be
// fetched.
const FileNotAccessible = "File Not Accessible"

// Header is the exact header row an input CSV must start with.
var Header = []string{"Serial Number", "Product Name", "Input Image Urls"}

type TaskPayload struct {
	JobID   string `json:"job_id"`
	CSV     string `json:"csv"`
	BaseURL string `json:"base_url"`
}

// Row is one data row of an input CSV.
type Row struct {
	SerialNumber string
	ProductName  string
	URLs         []string
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Compressor interface {
	Compress(ctx context.Context, data []byte, productName, sourceURL string) (string, error)
}

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mock_csvjob . Notifier

type Notifier interface {
	Notify(ctx context.Context, endpoint, jobID string, payload interface{}) bool
}

// Queue is the part of the task client the service and handlers use.
type Queue interface {
	Enqueue(ctx context.Context, task *asynq.Task, queue string, opts ...asynq.Option) (string, error)
	Status(queue, id string) (*tasks.Info, error)
}

type Config struct {
	WebhookURL    string
	TaskTimeout   time.Duration
	TaskRetention time.Duration
}
