package worker

import (
	"context"
	"time"

	"compressor/internal/logger"

	"github.com/hibiken/asynq"
)

type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	m := &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
	m.mux.Use(m.logging)
	return m
}

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

func (m *Mux) logging(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		id, _ := asynq.GetTaskID(ctx)
		m.log.Debug().Str("task_id", id).Str("type", task.Type()).Msg("task started")

		err := next.ProcessTask(ctx, task)
		if err != nil {
			m.log.Warn().Err(err).Str("task_id", id).Str("type", task.Type()).Dur("took", time.Since(start)).Msg("task failed")
			return err
		}
		m.log.Info().Str("task_id", id).Str("type", task.Type()).Dur("took", time.Since(start)).Msg("task done")
		return nil
	})
}
