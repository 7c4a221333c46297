package worker

import (
	"fmt"

	"compressor/internal/logger"
	"compressor/internal/platform/redis"
	"compressor/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

// NewServer builds the asynq server that consumes the default queue.
func NewServer(r *redis.Service, concurrency int, log *logger.Logger) *asynq.Server {
	return asynq.NewServer(r.AsynqRedisOpt(), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{tasks.QueueDefault: 1},
		Logger:      asynqLogger{log},
		LogLevel:    asynq.InfoLevel,
	})
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct{ log *logger.Logger }

var _ asynq.Logger = asynqLogger{}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(sprint(args)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(sprint(args)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(sprint(args)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(sprint(args)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(sprint(args)) }

func sprint(args []interface{}) string { return fmt.Sprint(args...) }
