package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/clock/system"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher"
	"github.com/JakeFAU/origin-crawler/internal/metrics"
	pubmemory "github.com/JakeFAU/origin-crawler/internal/publisher/memory"
	queuememory "github.com/JakeFAU/origin-crawler/internal/queue/memory"
	"github.com/JakeFAU/origin-crawler/internal/storage/memory"
)

type harness struct {
	queue     *queuememory.Queue
	jobs      *memory.JobStore
	results   *memory.ResultStore
	blobs     *memory.BlobStore
	publisher *pubmemory.Publisher
	worker    *Worker
}

func newHarness(t *testing.T, resolver FetcherResolver) *harness {
	t.Helper()
	metrics.Init()
	h := &harness{
		queue:     queuememory.NewQueue(4),
		jobs:      memory.NewJobStore(),
		results:   memory.NewResultStore(),
		blobs:     memory.NewBlobStore(),
		publisher: pubmemory.New(),
	}
	if resolver == nil {
		resolver = fetcher.NewRegistry(nil, 0)
	}
	h.worker = New(Deps{
		Queue:     h.queue,
		Jobs:      h.jobs,
		Results:   h.results,
		Blobs:     h.blobs,
		Publisher: h.publisher,
		Fetchers:  resolver,
		Clock:     system.Fixed{At: time.Unix(100, 0).UTC()},
	}, Config{BlobPrefix: "crawls", Topic: "crawl-done"}, zap.NewNop())
	return h
}

func (h *harness) submit(t *testing.T, id string, params crawler.JobParameters) crawler.QueueItem {
	t.Helper()
	require.NoError(t, h.jobs.CreateJob(context.Background(), crawler.Job{
		ID:         id,
		Status:     crawler.JobStatusQueued,
		Parameters: params,
	}))
	return crawler.QueueItem{JobID: id, Params: params}
}

func scenarioParams(name string) crawler.JobParameters {
	return crawler.JobParameters{
		Request: crawler.Request{
			Seed:           "http://news.yahoo.com/news/topics/",
			MaxConcurrency: 4,
		},
		Scenario: name,
	}
}

func TestProcessSuccessExportsAndPublishes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	item := h.submit(t, "job-1", scenarioParams("example1"))
	h.worker.Process(context.Background(), item)

	job, err := h.jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusSucceeded, job.Status)
	require.Empty(t, job.ErrorText)
	require.NotNil(t, job.Started)
	require.NotNil(t, job.Finished)
	require.Equal(t, "memory://crawls/job-1/result.json", job.BlobURI)
	require.Len(t, job.Result.Nodes, 4)
	require.Equal(t, "job-1", job.Result.ID)

	raw, ok := h.blobs.Object("crawls/job-1/result.json")
	require.True(t, ok)
	var exported crawler.Result
	require.NoError(t, json.Unmarshal(raw, &exported))
	require.Equal(t, job.Result.Fingerprint, exported.Fingerprint)

	record, ok := h.results.Result("job-1")
	require.True(t, ok)
	require.Equal(t, job.BlobURI, record.BlobURI)

	notices := h.publisher.Notices()
	require.Len(t, notices, 1)
	require.Equal(t, "job-1", notices[0].JobID)
	require.Equal(t, 4, notices[0].TotalNodes)
	require.Equal(t, "crawl-done", h.publisher.Messages()[0].Topic)
}

func TestProcessUnknownScenarioFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	item := h.submit(t, "job-bad", scenarioParams("nope"))
	h.worker.Process(context.Background(), item)

	job, err := h.jobs.GetJob(context.Background(), "job-bad")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorText, "resolve fetcher")
	require.Nil(t, job.Result)
	require.Empty(t, h.publisher.Messages())
}

func TestProcessPublishFailureMarksJobFailed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.publisher.FailWith(errors.New("pub failure"))
	item := h.submit(t, "job-pub", scenarioParams("example1"))
	h.worker.Process(context.Background(), item)

	job, err := h.jobs.GetJob(context.Background(), "job-pub")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorText, "pub failure")
	require.NotNil(t, job.Result)
}

type staticResolver struct{ f crawler.Fetcher }

func (s staticResolver) Resolve(string) (crawler.Fetcher, error) { return s.f, nil }

func TestProcessTimeoutKeepsPartialResult(t *testing.T) {
	t.Parallel()

	slow := crawler.FetcherFunc(func(ctx context.Context, node string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, staticResolver{f: slow})
	h.worker.cfg.JobTimeout = 20 * time.Millisecond

	item := h.submit(t, "job-slow", crawler.JobParameters{Request: crawler.Request{
		Seed:           "http://slow.test/",
		MaxConcurrency: 1,
	}})
	h.worker.Process(context.Background(), item)

	job, err := h.jobs.GetJob(context.Background(), "job-slow")
	require.NoError(t, err)
	require.Equal(t, crawler.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorText, "deadline exceeded")
	require.NotNil(t, job.Result)
	require.Equal(t, []string{"http://slow.test/"}, job.Result.Nodes)
	// Partial results are still exported.
	_, ok := h.blobs.Object("crawls/job-slow/result.json")
	require.True(t, ok)
}

func TestRunDrainsQueueUntilClosed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, h.queue.Enqueue(context.Background(), h.submit(t, id, scenarioParams("example2"))))
	}
	h.queue.Close()

	done := make(chan error, 1)
	go func() { done <- h.worker.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}
	for _, id := range []string{"a", "b"} {
		job, err := h.jobs.GetJob(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, crawler.JobStatusSucceeded, job.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestBlobPath(t *testing.T) {
	t.Parallel()

	w := New(Deps{}, Config{BlobPrefix: "/exports/"}, nil)
	require.Equal(t, "exports/j/result.json", w.blobPath("j"))
	w.cfg.BlobPrefix = ""
	require.Equal(t, "j/result.json", w.blobPath("j"))
}
