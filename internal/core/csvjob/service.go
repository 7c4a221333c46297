package csvjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"compressor/internal/core/compress"
	"compressor/internal/core/fetch"
	"compressor/internal/core/job"
	"compressor/internal/logger"
	"compressor/internal/platform/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Service submits CSV jobs and drives each one from CSV text to a stored
// result map.
type Service struct {
	job        job.Store
	queue      Queue
	fetcher    Fetcher
	compressor Compressor
	notifier   Notifier
	log        *logger.Logger
	config     Config
}

func NewService(store job.Store, queue Queue, fetcher Fetcher, compressor Compressor, notifier Notifier, cfg Config) *Service {
	return &Service{
		job:        store,
		queue:      queue,
		fetcher:    fetcher,
		compressor: compressor,
		notifier:   notifier,
		log:        logger.New("CSVJobService"),
		config:     cfg,
	}
}

// Enqueue records a Running job and submits it to the worker pool. The
// returned id is both the job id and the task id.
func (s *Service) Enqueue(ctx context.Context, csvText, baseURL string) (string, error) {
	id := uuid.New().String()

	payload, err := json.Marshal(TaskPayload{JobID: id, CSV: csvText, BaseURL: baseURL})
	if err != nil {
		return "", err
	}
	if err := s.job.Put(ctx, id, job.StatusRunning, job.Payload{}); err != nil {
		return "", err
	}

	opts := []asynq.Option{asynq.TaskID(id), asynq.MaxRetry(0)}
	if s.config.TaskTimeout > 0 {
		opts = append(opts, asynq.Timeout(s.config.TaskTimeout))
	}
	if s.config.TaskRetention > 0 {
		opts = append(opts, asynq.Retention(s.config.TaskRetention))
	}

	task := asynq.NewTask(tasks.TaskTypeProcessCSV, payload)
	if _, err := s.queue.Enqueue(ctx, task, tasks.QueueDefault, opts...); err != nil {
		s.fail(ctx, id, fmt.Errorf("enqueue: %w", err))
		return "", err
	}
	s.log.LogInfof("enqueued csv job %s (%d bytes)", id, len(csvText))
	return id, nil
}

// HandleTask is the asynq handler for TaskTypeProcessCSV. Job failures are
// returned wrapping asynq.SkipRetry so the task is archived, not retried.
func (s *Service) HandleTask(ctx context.Context, task *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.JobID == "" {
		p.JobID, _ = asynq.GetTaskID(ctx)
	}

	results, err := s.Process(ctx, p.CSV, p.BaseURL, p.JobID)
	if err != nil {
		return fmt.Errorf("job %s: %v: %w", p.JobID, err, asynq.SkipRetry)
	}

	if w := task.ResultWriter(); w != nil {
		b, err := json.Marshal(results)
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			s.log.LogWarnf("failed to write task result for job %s: %v", p.JobID, err)
		}
	}
	return nil
}

// Process runs one job and writes its terminal record. On success the
// webhook is notified once; its outcome never changes the record.
func (s *Service) Process(ctx context.Context, csvText, baseURL, jobID string) (*job.ResultMap, error) {
	log := s.log.WithJob(jobID)

	if current, err := s.job.Get(ctx, jobID); err == nil && current.Status.Terminal() {
		log.LogWarnf("job already %s, skipping", current.Status)
		if current.Status == job.StatusFailed {
			return nil, errors.New(current.Error)
		}
		return current.Results, nil
	}

	results, err := s.run(ctx, csvText, baseURL)
	if err != nil {
		s.fail(ctx, jobID, err)
		return nil, err
	}

	if err := s.job.Put(context.WithoutCancel(ctx), jobID, job.StatusCompleted, job.Payload{Results: results}); err != nil {
		if !errors.Is(err, job.ErrAlreadyFinalized) {
			s.fail(ctx, jobID, fmt.Errorf("store results: %w", err))
		}
		return nil, err
	}
	log.Info().Int("products", results.Len()).Msg("job completed")

	if !s.notifier.Notify(ctx, s.config.WebhookURL, jobID, results) && s.config.WebhookURL != "" {
		log.LogWarnf("webhook delivery to %s failed", s.config.WebhookURL)
	}
	return results, nil
}

func (s *Service) run(ctx context.Context, csvText, baseURL string) (*job.ResultMap, error) {
	rows, err := ParseCSV(csvText)
	if err != nil {
		return nil, err
	}

	results := job.NewResultMap()
	for _, row := range rows {
		outputs := make([]string, 0, len(row.URLs))
		for _, u := range row.URLs {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("job canceled: %w", err)
			}
			out, err := s.compressOne(ctx, row.ProductName, u, baseURL)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, out)
		}
		// Duplicate product names overwrite in place.
		results.Set(row.ProductName, job.ProductResult{
			SerialNumber: row.SerialNumber,
			InputURLs:    row.URLs,
			OutputURLs:   outputs,
		})
	}
	return results, nil
}

func (s *Service) compressOne(ctx context.Context, product, sourceURL, baseURL string) (string, error) {
	data, err := s.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		if errors.Is(err, fetch.ErrUnreachable) {
			s.log.LogDebugf("%s: %v", sourceURL, err)
			return FileNotAccessible, nil
		}
		return "", err
	}

	name, err := s.compressor.Compress(ctx, data, product, sourceURL)
	if err != nil {
		return "", err
	}
	return compress.OutputURL(baseURL, name), nil
}

func (s *Service) fail(ctx context.Context, jobID string, cause error) {
	log := s.log.WithJob(jobID)
	log.Error().Err(cause).Msg("job failed")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", jobID)
		sentry.CaptureException(cause)
	})

	err := s.job.Put(context.WithoutCancel(ctx), jobID, job.StatusFailed, job.Payload{Error: cause.Error()})
	if err != nil {
		log.LogErrorf("failed to record failure: %v", err)
	}
}
