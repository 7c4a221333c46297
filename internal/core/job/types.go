package job

import (
	"context"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Status of a job record. Running is written at submission, Completed or
// Failed exactly once when processing ends.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

func (s Status) Valid() bool { return s == StatusRunning || s.Terminal() }

// ProductResult holds the input urls of one product and the output urls
// produced for them, position for position.
type ProductResult struct {
	SerialNumber string   `json:"serial_number,omitempty"`
	InputURLs    []string `json:"input_urls"`
	OutputURLs   []string `json:"output_urls"`
}

// ResultMap maps product name to its result, in first-seen row order.
type ResultMap = orderedmap.OrderedMap[string, ProductResult]

func NewResultMap() *ResultMap { return orderedmap.New[string, ProductResult]() }

// Payload is what a Put attaches to a record: results on completion, an
// error reason on failure, nothing while running.
type Payload struct {
	Results *ResultMap
	Error   string
}

// Job is the stored record of one CSV processing request.
type Job struct {
	JobID     string     `json:"job_id"`
	Status    Status     `json:"status"`
	Results   *ResultMap `json:"results,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store is the durable job id -> record mapping. Implementations must be
// safe for concurrent use on distinct ids.
type Store interface {
	// Put upserts the record, refusing any write that would leave a
	// terminal status or repeat Running.
	Put(ctx context.Context, jobID string, status Status, payload Payload) error
	// Get returns ErrNotFound for ids that were never written.
	Get(ctx context.Context, jobID string) (*Job, error)
}
