package csvjob

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mock_csvjob "compressor/internal/core/csvjob/mocks"
	"compressor/internal/core/job"
	mock_job "compressor/internal/core/job/mocks"
	"compressor/internal/platform/tasks"

	"github.com/golang/mock/gomock"
	"github.com/hibiken/asynq"
)

const (
	baseURL    = "http://host:8000/"
	webhookURL = "http://127.0.0.1:8002/webhook"
	header     = "Serial Number,Product Name,Input Image Urls\n"
)

type testEnv struct {
	svc      *Service
	store    *mock_job.MockJobStore
	fetcher  *fakeFetcher
	comp     *fakeCompressor
	queue    *fakeQueue
	notifier *mock_csvjob.MockNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)
	env := &testEnv{
		store:    mock_job.NewMockJobStore(),
		fetcher:  &fakeFetcher{bodies: map[string][]byte{}},
		comp:     &fakeCompressor{},
		queue:    &fakeQueue{infos: map[string]*tasks.Info{}},
		notifier: mock_csvjob.NewMockNotifier(ctrl),
	}
	env.svc = NewService(env.store, env.queue, env.fetcher, env.comp, env.notifier, Config{WebhookURL: webhookURL})
	return env
}

func TestService_ProcessRecordsUnreachableURLs(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.bodies["http://x/a.jpg"] = []byte("jpeg")
	env.notifier.EXPECT().Notify(gomock.Any(), webhookURL, "job-1", gomock.Any()).Return(true).Times(1)

	results, err := env.svc.Process(context.Background(), header+"1,Shoe,http://x/a.jpg,http://x/b.jpg", baseURL, "job-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	shoe, ok := results.Get("Shoe")
	if !ok {
		t.Fatalf("Expected a Shoe entry")
	}
	wantIn := []string{"http://x/a.jpg", "http://x/b.jpg"}
	wantOut := []string{baseURL + "compressed/compressed_Shoe_a.jpg", FileNotAccessible}
	for i := range wantIn {
		if shoe.InputURLs[i] != wantIn[i] || shoe.OutputURLs[i] != wantOut[i] {
			t.Errorf("Position %d: got %s -> %s, want %s -> %s", i, shoe.InputURLs[i], shoe.OutputURLs[i], wantIn[i], wantOut[i])
		}
	}

	j, err := env.store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StatusCompleted {
		t.Errorf("Expected Completed, got %s", j.Status)
	}
}

func TestService_ProcessEmptyCSVFails(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	if _, err := env.svc.Process(context.Background(), "", baseURL, "job-1"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("Expected ErrEmptyInput, got: %v", err)
	}

	j, _ := env.store.Get(context.Background(), "job-1")
	if j.Status != job.StatusFailed || j.Error != ErrEmptyInput.Error() {
		t.Errorf("Expected Failed with empty input reason, got %+v", j)
	}
	if len(env.fetcher.calls) != 0 {
		t.Errorf("Expected no fetches, got %v", env.fetcher.calls)
	}
}

func TestService_ProcessBadHeaderFails(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.Process(context.Background(), "a,b,c\n1,Shoe,http://x/a.jpg", baseURL, "job-1"); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("Expected ErrInvalidSchema, got: %v", err)
	}
	j, _ := env.store.Get(context.Background(), "job-1")
	if j.Status != job.StatusFailed || j.Error != ErrInvalidSchema.Error() {
		t.Errorf("Expected Failed with schema reason, got %+v", j)
	}
}

func TestService_ProcessKeepsOrderAndLastDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true)

	csv := header +
		"1,Shoe,http://x/s1.jpg\n" +
		"2,Hat\n" +
		"3,Bag,http://x/b.jpg\n" +
		"4,Shoe,http://x/s2.jpg,http://x/s3.jpg\n"
	results, err := env.svc.Process(context.Background(), csv, baseURL, "job-1")
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for pair := results.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	if strings.Join(names, ",") != "Shoe,Bag" {
		t.Errorf("Expected Shoe,Bag, got %v", names)
	}
	shoe, _ := results.Get("Shoe")
	if shoe.SerialNumber != "4" || len(shoe.InputURLs) != 2 || len(shoe.OutputURLs) != 2 {
		t.Errorf("Expected the last Shoe row to win, got %+v", shoe)
	}
	want := []string{"http://x/s1.jpg", "http://x/b.jpg", "http://x/s2.jpg", "http://x/s3.jpg"}
	if strings.Join(env.fetcher.calls, " ") != strings.Join(want, " ") {
		t.Errorf("Expected fetches in row then column order, got %v", env.fetcher.calls)
	}
}

func TestService_ProcessUndecodableImageFailsJob(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.bodies["http://x/a.jpg"] = []byte("not an image")
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	if _, err := env.svc.Process(context.Background(), header+"1,Shoe,http://x/a.jpg", baseURL, "job-1"); err == nil {
		t.Fatal("Expected an error")
	}
	j, _ := env.store.Get(context.Background(), "job-1")
	if j.Status != job.StatusFailed {
		t.Errorf("Expected Failed, got %s", j.Status)
	}
}

func TestService_ProcessStoreFailureLeavesNoCompletedRecord(t *testing.T) {
	env := newTestEnv(t)
	env.store.ReturnError(errBoom)
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	if _, err := env.svc.Process(context.Background(), header+"1,Shoe,http://x/a.jpg", baseURL, "job-1"); !errors.Is(err, errBoom) {
		t.Fatalf("Expected store error, got: %v", err)
	}
	if puts := env.store.Puts(); len(puts) != 0 {
		t.Errorf("Expected no successful writes, got %v", puts)
	}
}

func TestService_ProcessWebhookFailureKeepsCompleted(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false).Times(1)

	if _, err := env.svc.Process(context.Background(), header+"1,Shoe,http://x/a.jpg", baseURL, "job-1"); err != nil {
		t.Fatalf("Expected webhook failure to be swallowed, got: %v", err)
	}
	j, _ := env.store.Get(context.Background(), "job-1")
	if j.Status != job.StatusCompleted {
		t.Errorf("Expected Completed, got %s", j.Status)
	}
}

func TestService_ProcessCanceledContextFailsJob(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := env.svc.Process(ctx, header+"1,Shoe,http://x/a.jpg", baseURL, "job-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	j, _ := env.store.Get(context.Background(), "job-1")
	if j.Status != job.StatusFailed {
		t.Errorf("Expected the failure to be recorded despite cancellation, got %s", j.Status)
	}
}

func TestService_ProcessSkipsFinishedJobs(t *testing.T) {
	env := newTestEnv(t)
	env.store.InstantPut(&job.Job{JobID: "job-1", Status: job.StatusCompleted, Results: newResults(entry{name: "Hat"})})
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	results, err := env.svc.Process(context.Background(), header+"1,Shoe,http://x/a.jpg", baseURL, "job-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := results.Get("Hat"); !ok || len(env.fetcher.calls) != 0 {
		t.Errorf("Expected the stored outcome without reprocessing")
	}
}

func TestService_EnqueueRecordsRunningJob(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.svc.Enqueue(context.Background(), header, baseURL)
	if err != nil {
		t.Fatal(err)
	}
	j, err := env.store.Get(context.Background(), id)
	if err != nil || j.Status != job.StatusRunning {
		t.Fatalf("Expected Running record, got %+v (%v)", j, err)
	}
	if len(env.queue.enqueued) != 1 || env.queue.enqueued[0].Type() != tasks.TaskTypeProcessCSV {
		t.Fatalf("Expected one csv task, got %v", env.queue.enqueued)
	}

	var p TaskPayload
	if err := json.Unmarshal(env.queue.enqueued[0].Payload(), &p); err != nil {
		t.Fatal(err)
	}
	if p.JobID != id || p.CSV != header || p.BaseURL != baseURL {
		t.Errorf("Unexpected payload %+v", p)
	}
}

func TestService_EnqueueFailureRecordsFailedJob(t *testing.T) {
	env := newTestEnv(t)
	env.queue.err = errBoom

	if _, err := env.svc.Enqueue(context.Background(), header, baseURL); !errors.Is(err, errBoom) {
		t.Fatalf("Expected enqueue error, got: %v", err)
	}
	puts := env.store.Puts()
	if len(puts) != 2 || puts[0] != job.StatusRunning || puts[1] != job.StatusFailed {
		t.Errorf("Expected Running then Failed, got %v", puts)
	}
}

func TestService_HandleTask(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.bodies["http://x/a.jpg"] = []byte("jpeg")
	env.notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true)

	ok, _ := json.Marshal(TaskPayload{JobID: "job-1", CSV: header + "1,Shoe,http://x/a.jpg", BaseURL: baseURL})
	if err := env.svc.HandleTask(context.Background(), asynq.NewTask(tasks.TaskTypeProcessCSV, ok)); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	bad, _ := json.Marshal(TaskPayload{JobID: "job-2", CSV: ""})
	err := env.svc.HandleTask(context.Background(), asynq.NewTask(tasks.TaskTypeProcessCSV, bad))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("Expected job failure to skip retries, got: %v", err)
	}

	err = env.svc.HandleTask(context.Background(), asynq.NewTask(tasks.TaskTypeProcessCSV, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("Expected malformed payload to skip retries, got: %v", err)
	}
}
