package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CheckTransition reports whether a record currently in state current (nil
// when absent) may be written with status next.
func CheckTransition(jobID string, current *Job, next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if current == nil {
		return nil
	}
	if current.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, jobID, current.Status)
	}
	if !next.Terminal() {
		return fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, jobID, current.Status)
	}
	return nil
}

// build produces the record to persist, keeping the creation time of current.
func build(jobID string, current *Job, status Status, payload Payload, now time.Time) *Job {
	j := &Job{
		JobID:     jobID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if current != nil && !current.CreatedAt.IsZero() {
		j.CreatedAt = current.CreatedAt
	}
	switch status {
	case StatusCompleted:
		j.Results = payload.Results
		if j.Results == nil {
			j.Results = NewResultMap()
		}
	case StatusFailed:
		j.Error = payload.Error
	}
	return j
}

// encodeData renders the data column used by the SQL and document stores:
// the result map when completed, {"error": reason} when failed.
func encodeData(j *Job) ([]byte, error) {
	switch j.Status {
	case StatusCompleted:
		return json.Marshal(j.Results)
	case StatusFailed:
		return json.Marshal(map[string]string{"error": j.Error})
	default:
		return []byte("{}"), nil
	}
}

func decodeData(j *Job, data []byte) error {
	switch j.Status {
	case StatusCompleted:
		results := NewResultMap()
		if err := json.Unmarshal(data, results); err != nil {
			return fmt.Errorf("decode results of %s: %w", j.JobID, err)
		}
		j.Results = results
	case StatusFailed:
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("decode error payload of %s: %w", j.JobID, err)
		}
		j.Error = payload.Error
	}
	return nil
}

var (
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyFinalized  = errors.New("job already finalized")
	ErrInvalidTransition = errors.New("invalid job status transition")
)
