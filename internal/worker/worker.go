// Package worker runs queued crawl jobs and exports their results.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/metrics"
)

// FetcherResolver picks the Fetcher for a job's scenario.
type FetcherResolver interface {
	Resolve(scenario string) (crawler.Fetcher, error)
}

// Config controls Worker behavior.
type Config struct {
	// BlobPrefix is prepended to exported result paths.
	BlobPrefix string
	// Topic receives completion notices. Empty disables publishing.
	Topic string
	// JobTimeout bounds one crawl. Zero means no limit.
	JobTimeout time.Duration
}

// Deps groups the collaborators of a Worker. Results, Blobs and
// Publisher are optional.
type Deps struct {
	Queue     crawler.Queue
	Jobs      crawler.JobStore
	Results   crawler.ResultStore
	Blobs     crawler.BlobStore
	Publisher crawler.Publisher
	Fetchers  FetcherResolver
	Crawler   *crawler.Crawler
	Clock     crawler.Clock
}

// Worker consumes queue items and executes crawl jobs.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Crawler == nil {
		deps.Crawler = crawler.New(crawler.WithLogger(logger))
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	for {
		item, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return nil
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.Process(ctx, item)
	}
}

// Process runs one job to completion and records its outcome. Bookkeeping
// after the crawl survives cancellation of ctx.
func (w *Worker) Process(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	logger := w.logger.With(zap.String("job_id", item.JobID), zap.String("seed", item.Params.Request.Seed))
	if err := w.deps.Jobs.StartJob(ctx, item.JobID, w.now()); err != nil {
		logger.Error("start job failed", zap.Error(err))
		return
	}

	result, crawlErr := w.crawl(ctx, item)
	persistCtx := context.WithoutCancel(ctx)

	outcome := crawler.JobOutcome{Status: crawler.JobStatusSucceeded}
	var errs []string
	if crawlErr != nil {
		errs = append(errs, crawlErr.Error())
	}
	if result != nil {
		uri, err := w.export(persistCtx, item.JobID, result)
		if err != nil {
			errs = append(errs, err.Error())
		}
		outcome.BlobURI = uri
		outcome.Result = result
	}
	if len(errs) > 0 {
		outcome.Status = crawler.JobStatusFailed
		outcome.ErrorText = strings.Join(errs, "; ")
	}
	outcome.FinishedAt = w.now()

	if result != nil && outcome.Status == crawler.JobStatusSucceeded {
		if err := w.publish(persistCtx, item.JobID, result, outcome); err != nil {
			outcome.Status = crawler.JobStatusFailed
			outcome.ErrorText = err.Error()
		}
	}

	if err := w.deps.Jobs.FinishJob(persistCtx, item.JobID, outcome); err != nil {
		logger.Error("finish job failed", zap.Error(err))
	}
	metrics.ObserveJob(string(outcome.Status))
	nodes := 0
	if result != nil {
		nodes = len(result.Nodes)
	}
	metrics.ObserveCrawl(item.Params.Request.Seed, "job", string(outcome.Status), nodes)
	logger.Info("job finished",
		zap.String("status", string(outcome.Status)),
		zap.Int("nodes", nodes),
		zap.String("blob_uri", outcome.BlobURI),
		zap.String("error", outcome.ErrorText),
	)
}

// crawl returns a nil result only when nothing was crawled.
func (w *Worker) crawl(ctx context.Context, item crawler.QueueItem) (*crawler.Result, error) {
	fetcher, err := w.deps.Fetchers.Resolve(item.Params.Scenario)
	if err != nil {
		return nil, fmt.Errorf("resolve fetcher: %w", err)
	}
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}
	req := item.Params.Request
	req.ID = item.JobID
	result, err := w.deps.Crawler.Crawl(ctx, fetcher, req)
	if err != nil && len(result.Nodes) == 0 {
		return nil, err
	}
	return &result, err
}

// export writes the result JSON to the blob store and the result store.
func (w *Worker) export(ctx context.Context, jobID string, result *crawler.Result) (string, error) {
	var uri string
	if w.deps.Blobs != nil {
		body, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		uri, err = w.deps.Blobs.PutObject(ctx, w.blobPath(jobID), "application/json", bytes.NewReader(body))
		metrics.ObserveExport("blob", err)
		if err != nil {
			return "", fmt.Errorf("put object: %w", err)
		}
	}
	if w.deps.Results != nil {
		err := w.deps.Results.SaveResult(ctx, crawler.ResultRecord{
			JobID:      jobID,
			Result:     *result,
			BlobURI:    uri,
			FinishedAt: w.now(),
		})
		metrics.ObserveExport("results", err)
		if err != nil {
			return uri, fmt.Errorf("save result: %w", err)
		}
	}
	return uri, nil
}

func (w *Worker) publish(ctx context.Context, jobID string, result *crawler.Result, outcome crawler.JobOutcome) error {
	if w.cfg.Topic == "" || w.deps.Publisher == nil {
		return nil
	}
	notice := crawler.CompletionNotice{
		JobID:       jobID,
		Seed:        result.Seed,
		Origin:      result.Origin,
		TotalNodes:  len(result.Nodes),
		Fingerprint: result.Fingerprint,
		BlobURI:     outcome.BlobURI,
		FinishedAt:  outcome.FinishedAt,
	}
	_, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, notice)
	metrics.ObserveExport("publish", err)
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

func (w *Worker) blobPath(jobID string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/result.json", jobID)
	}
	return fmt.Sprintf("%s/%s/result.json", prefix, jobID)
}

func (w *Worker) now() time.Time {
	if w.deps.Clock == nil {
		return time.Now().UTC()
	}
	return w.deps.Clock.Now()
}
