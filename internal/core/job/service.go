package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"compressor/internal/logger"
	rds "compressor/internal/platform/redis"

	redisv8 "github.com/go-redis/redis/v8"
)

// maxWatchAttempts bounds optimistic retries when another writer touches
// the same key between WATCH and EXEC.
const maxWatchAttempts = 3

// JobService is the Redis backed Store. Records are kept without expiry.
type JobService struct {
	redis *rds.Service
	log   *logger.Logger
	now   func() time.Time
}

var _ Store = (*JobService)(nil)

func NewJobService(redis *rds.Service) *JobService {
	return &JobService{redis: redis, log: logger.New("JobStore"), now: func() time.Time { return time.Now().UTC() }}
}

func (s *JobService) Get(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := s.redis.CacheGet(ctx, key(jobID), &job); err != nil {
		if errors.Is(err, rds.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

func (s *JobService) Put(ctx context.Context, jobID string, status Status, payload Payload) error {
	k := key(jobID)
	txf := func(tx *redisv8.Tx) error {
		var current *Job
		raw, err := tx.Get(ctx, k).Bytes()
		switch {
		case errors.Is(err, redisv8.Nil):
		case err != nil:
			return err
		default:
			current = &Job{}
			if err := json.Unmarshal(raw, current); err != nil {
				return fmt.Errorf("decode job %s: %w", jobID, err)
			}
		}

		if err := CheckTransition(jobID, current, status); err != nil {
			return err
		}

		b, err := json.Marshal(build(jobID, current, status, payload, s.now()))
		if err != nil {
			return fmt.Errorf("encode job %s: %w", jobID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv8.Pipeliner) error {
			pipe.Set(ctx, k, b, 0)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err = s.redis.Client().Watch(ctx, txf, k)
		if !errors.Is(err, redisv8.TxFailedErr) {
			break
		}
		s.log.LogDebugf("job %s changed during write, retrying", jobID)
	}
	if err != nil {
		return fmt.Errorf("put job %s: %w", jobID, err)
	}
	s.log.Debug().Str("job_id", jobID).Str("status", string(status)).Msg("job stored")
	return nil
}

func key(id string) string { return "job:" + id }
