package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// JobStore provides an in-memory crawler.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]crawler.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]crawler.Job)}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// StartJob marks a job running.
func (s *JobStore) StartJob(_ context.Context, jobID string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("start %s: %w", jobID, crawler.ErrJobNotFound)
	}
	job.Status = crawler.JobStatusRunning
	job.Started = pointerTime(startedAt)
	s.jobs[jobID] = job
	return nil
}

// FinishJob records the terminal state of a job.
func (s *JobStore) FinishJob(_ context.Context, jobID string, outcome crawler.JobOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("finish %s: %w", jobID, crawler.ErrJobNotFound)
	}
	job.Status = outcome.Status
	job.ErrorText = outcome.ErrorText
	job.Finished = pointerTime(outcome.FinishedAt)
	job.Result = outcome.Result
	job.BlobURI = outcome.BlobURI
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, fmt.Errorf("get %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
