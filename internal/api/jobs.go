package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/metrics"
	queuememory "github.com/JakeFAU/origin-crawler/internal/queue/memory"
)

// submitJobResponse is returned with 202 Accepted.
type submitJobResponse struct {
	JobID  string            `json:"job_id"`
	Status crawler.JobStatus `json:"status"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var body crawlRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := s.toRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Fail unknown scenarios at submission rather than in the worker.
	if _, err := s.deps.Fetchers.Resolve(body.TestScenario); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	jobID, err := s.enqueueJob(r.Context(), crawler.JobParameters{Request: req, Scenario: body.TestScenario})
	if err != nil {
		s.logger.Error("enqueue job failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	metrics.ObserveJob(string(crawler.JobStatusQueued))
	writeJSON(w, http.StatusAccepted, submitJobResponse{JobID: jobID, Status: crawler.JobStatusQueued})
}

func (s *Server) enqueueJob(ctx context.Context, params crawler.JobParameters) (string, error) {
	jobID, err := s.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	params.Request.ID = jobID
	now := s.deps.Clock.Now()
	job := crawler.Job{
		ID:         jobID,
		Status:     crawler.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
	}
	if err := s.deps.Jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item := crawler.QueueItem{
		JobID:     jobID,
		Params:    params,
		Submitted: now.Unix(),
	}
	if err := s.deps.Dispatcher.Enqueue(queueCtx, item); err != nil {
		finishErr := s.deps.Jobs.FinishJob(context.WithoutCancel(ctx), jobID, crawler.JobOutcome{
			Status:     crawler.JobStatusFailed,
			FinishedAt: s.deps.Clock.Now(),
			ErrorText:  "enqueue failed: " + err.Error(),
		})
		if finishErr != nil {
			s.logger.Warn("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(finishErr))
		}
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: waited %s", queuememory.ErrQueueFull, enqueueTimeout)
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return jobID, nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.deps.Jobs.GetJob(r.Context(), jobID)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusNotFound {
			msg = "job not found"
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
