package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in the jobs table created by the embedded
// migrations in internal/platform/postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const selectJob = `SELECT status, data, created_at, updated_at FROM jobs WHERE id = $1`

func scanJob(jobID string, row pgx.Row) (*Job, error) {
	var (
		j      = &Job{JobID: jobID}
		status string
		data   []byte
	)
	if err := row.Scan(&status, &data, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Status = Status(status)
	if err := decodeData(j, data); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*Job, error) {
	j, err := scanJob(jobID, s.pool.QueryRow(ctx, selectJob, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return j, nil
}

func (s *PostgresStore) Put(ctx context.Context, jobID string, status Status, payload Payload) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin put job %s: %w", jobID, err)
	}
	defer tx.Rollback(ctx)

	current, err := scanJob(jobID, tx.QueryRow(ctx, selectJob+` FOR UPDATE`, jobID))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock job %s: %w", jobID, err)
		}
		current = nil
	}

	if err := CheckTransition(jobID, current, status); err != nil {
		return err
	}

	next := build(jobID, current, status, payload, s.now())
	data, err := encodeData(next)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", jobID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		jobID, string(next.Status), string(data), next.CreatedAt, next.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", jobID, err)
	}
	return tx.Commit(ctx)
}
