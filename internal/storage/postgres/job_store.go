package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// JobStore keeps crawl job metadata in Postgres.
type JobStore struct {
	db    DB
	table string
}

// NewJobStore wraps db. An empty table name selects crawl_jobs.
func NewJobStore(db DB, table string) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultJobsTable)
	if err != nil {
		return nil, err
	}
	return &JobStore{db: db, table: table}, nil
}

// CreateJob inserts a queued job.
func (s *JobStore) CreateJob(ctx context.Context, job crawler.Job) error {
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, status, submitted_at, parameters) VALUES ($1,$2,$3,$4)`, s.table)
	if _, err := s.db.Exec(ctx, query, job.ID, string(job.Status), job.Submitted, params); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// StartJob marks a job running.
func (s *JobStore) StartJob(ctx context.Context, jobID string, startedAt time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, started_at = $3 WHERE id = $1`, s.table)
	tag, err := s.db.Exec(ctx, query, jobID, string(crawler.JobStatusRunning), startedAt)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("start %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// FinishJob records the outcome of a job.
func (s *JobStore) FinishJob(ctx context.Context, jobID string, outcome crawler.JobOutcome) error {
	var result []byte
	if outcome.Result != nil {
		var err error
		if result, err = json.Marshal(outcome.Result); err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
	}
	query := fmt.Sprintf(
		`UPDATE %s SET status = $2, finished_at = $3, error_text = $4, result = $5, blob_uri = $6 WHERE id = $1`,
		s.table,
	)
	tag, err := s.db.Exec(ctx, query,
		jobID, string(outcome.Status), outcome.FinishedAt, outcome.ErrorText, result, outcome.BlobURI)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// GetJob loads a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (crawler.Job, error) {
	query := fmt.Sprintf(`SELECT id, status, submitted_at, started_at, finished_at, error_text, parameters, result, blob_uri
FROM %s WHERE id = $1`, s.table)
	var (
		job    crawler.Job
		status string
		params []byte
		result []byte
	)
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID, &status, &job.Submitted, &job.Started, &job.Finished,
		&job.ErrorText, &params, &result, &job.BlobURI,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Job{}, fmt.Errorf("get %s: %w", jobID, crawler.ErrJobNotFound)
	}
	if err != nil {
		return crawler.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = crawler.JobStatus(status)
	if err := json.Unmarshal(params, &job.Parameters); err != nil {
		return crawler.Job{}, fmt.Errorf("decode parameters: %w", err)
	}
	if len(result) > 0 {
		job.Result = &crawler.Result{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return crawler.Job{}, fmt.Errorf("decode result: %w", err)
		}
	}
	return job, nil
}
