package mock_job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"compressor/internal/core/job"
)

// MockJobStore is an in-memory job.Store. It applies the same transition
// rules as the real stores and can be told to fail every call.
type MockJobStore struct {
	jobs map[string]*job.Job
	puts []job.Status
	lock sync.Mutex
	err  error
}

var _ job.Store = (*MockJobStore)(nil)

func NewMockJobStore() *MockJobStore {
	return &MockJobStore{jobs: make(map[string]*job.Job)}
}

func (s *MockJobStore) ReturnError(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.err = err
}

// InstantPut stores a record as-is, bypassing transition checks.
func (s *MockJobStore) InstantPut(j *job.Job) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.jobs[j.JobID] = j
}

// Puts returns the statuses successfully written, in order.
func (s *MockJobStore) Puts() []job.Status {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]job.Status(nil), s.puts...)
}

func (s *MockJobStore) Put(ctx context.Context, jobID string, status job.Status, payload job.Payload) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.err != nil {
		return s.err
	}

	current := s.jobs[jobID]
	if err := job.CheckTransition(jobID, current, status); err != nil {
		return err
	}

	now := time.Now().UTC()
	next := &job.Job{JobID: jobID, Status: status, CreatedAt: now, UpdatedAt: now}
	if current != nil {
		next.CreatedAt = current.CreatedAt
	}
	switch status {
	case job.StatusCompleted:
		next.Results = payload.Results
		if next.Results == nil {
			next.Results = job.NewResultMap()
		}
	case job.StatusFailed:
		next.Error = payload.Error
	}

	s.jobs[jobID] = next
	s.puts = append(s.puts, status)
	return nil
}

func (s *MockJobStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", job.ErrNotFound, jobID)
	}
	return j, nil
}
