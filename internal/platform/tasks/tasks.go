package tasks

import (
	"context"
	"errors"
	"fmt"

	"compressor/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeProcessCSV = "csv:process"

	QueueDefault = "default"
)

// State is the queue's view of a task, independent of the job record.
type State string

const (
	StatePending State = "PENDING"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Info is what the queue knows about one task.
type Info struct {
	ID     string
	State  State
	Result []byte
	Error  string
}

type Client struct {
	c         *asynq.Client
	inspector *asynq.Inspector
}

func New(r *redis.Service) *Client {
	opt := r.AsynqRedisOpt()
	return &Client{c: asynq.NewClient(opt), inspector: asynq.NewInspector(opt)}
}

// Enqueue submits task and returns the id the queue assigned to it. Pass
// asynq.TaskID to choose the id.
func (t *Client) Enqueue(ctx context.Context, task *asynq.Task, queue string, opts ...asynq.Option) (string, error) {
	opts = append([]asynq.Option{asynq.Queue(queue)}, opts...)
	info, err := t.c.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

// Status returns ErrTaskNotFound once a task has left the queue's retention.
func (t *Client) Status(queue, id string) (*Info, error) {
	ti, err := t.inspector.GetTaskInfo(queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("inspect task %s: %w", id, err)
	}
	return &Info{ID: ti.ID, State: StateOf(ti.State), Result: ti.Result, Error: ti.LastErr}, nil
}

func (t *Client) Close() error {
	errI := t.inspector.Close()
	if err := t.c.Close(); err != nil {
		return err
	}
	return errI
}

func StateOf(s asynq.TaskState) State {
	switch s {
	case asynq.TaskStateActive:
		return StateRunning
	case asynq.TaskStateCompleted:
		return StateSuccess
	case asynq.TaskStateArchived:
		return StateFailure
	default:
		return StatePending
	}
}

var ErrTaskNotFound = errors.New("task not found")
