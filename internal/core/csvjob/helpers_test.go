package csvjob

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compressor/internal/core/compress"
	"compressor/internal/core/fetch"
	"compressor/internal/core/job"
	"compressor/internal/platform/tasks"

	"github.com/hibiken/asynq"
)

type entry struct {
	name, serial string
	in, out      []string
}

func newResults(entries ...entry) *job.ResultMap {
	m := job.NewResultMap()
	for _, e := range entries {
		m.Set(e.name, job.ProductResult{SerialNumber: e.serial, InputURLs: e.in, OutputURLs: e.out})
	}
	return m
}

// fakeFetcher serves bytes by url; unknown urls are unreachable.
type fakeFetcher struct {
	bodies map[string][]byte
	err    error
	calls  []string
	lock   sync.Mutex
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.bodies[url]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s returned 404", fetch.ErrUnreachable, url)
}

// fakeCompressor names artifacts like the real service without decoding.
type fakeCompressor struct {
	err error
}

func (c *fakeCompressor) Compress(ctx context.Context, data []byte, productName, sourceURL string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	if string(data) == "not an image" {
		return "", fmt.Errorf("%w: %s", compress.ErrUndecodable, sourceURL)
	}
	return compress.FileName(productName, sourceURL), nil
}

type fakeQueue struct {
	enqueued []*asynq.Task
	infos    map[string]*tasks.Info
	err      error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *asynq.Task, queue string, opts ...asynq.Option) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.enqueued = append(q.enqueued, task)
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			return o.Value().(string), nil
		}
	}
	return "generated", nil
}

func (q *fakeQueue) Status(queue, id string) (*tasks.Info, error) {
	if info, ok := q.infos[id]; ok {
		return info, nil
	}
	return nil, tasks.ErrTaskNotFound
}

var errBoom = errors.New("boom")
