package crawler

import (
	"time"
)

// Strategy selects how units of work are scheduled.
type Strategy string

// Supported strategies.
const (
	// StrategyPool runs MaxConcurrency workers over an unbounded queue.
	StrategyPool Strategy = "pool"
	// StrategySpawn starts one goroutine per admitted node and relies on the
	// Limiter alone to bound Fetcher calls.
	StrategySpawn Strategy = "spawn"
)

// Valid reports whether s names a supported strategy.
func (s Strategy) Valid() bool {
	return s == StrategyPool || s == StrategySpawn
}

// Request configures one crawl. It is not modified by the crawler.
type Request struct {
	// ID names the crawl in progress events and frontier keys. Generated
	// when empty.
	ID   string `json:"id,omitempty"`
	Seed string `json:"seed"`
	// MaxDepth bounds discovery depth; the seed is depth 0. Nil means
	// unbounded.
	MaxDepth *int `json:"max_depth,omitempty"`
	// MaxURLs bounds the number of admitted nodes. Nil means unbounded.
	MaxURLs        *int         `json:"max_urls,omitempty"`
	MaxConcurrency int          `json:"max_concurrency"`
	Strategy       Strategy     `json:"strategy,omitempty"`
	LimitMode      LimitMode    `json:"limit_mode,omitempty"`
	OriginPolicy   OriginPolicy `json:"origin_policy,omitempty"`
}

// Bound returns a pointer to n, for Request.MaxDepth and Request.MaxURLs.
func Bound(n int) *int {
	return &n
}

// Result is the frontier at completion plus bookkeeping. Nodes and Failed
// are sorted; the crawl itself visits nodes in no particular order.
type Result struct {
	ID          string   `json:"id"`
	Seed        string   `json:"seed"`
	Origin      string   `json:"origin"`
	Nodes       []string `json:"nodes"`
	Failed      []string `json:"failed,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	Stats       Stats    `json:"stats"`
}

// Stats summarizes one crawl.
type Stats struct {
	Admitted       int           `json:"admitted"`
	Fetched        int           `json:"fetched"`
	FetchErrors    int           `json:"fetch_errors"`
	Dropped        int           `json:"dropped"`
	Duplicates     int           `json:"duplicates"`
	SkippedDepth   int           `json:"skipped_depth"`
	SkippedLimit   int           `json:"skipped_limit"`
	AdmitErrors    int           `json:"admit_errors"`
	PeakInFlight   int           `json:"peak_in_flight"`
	MaxConcurrency int           `json:"max_concurrency"`
	Strategy       Strategy      `json:"strategy"`
	StartedAt      time.Time     `json:"started_at"`
	Elapsed        time.Duration `json:"elapsed"`
}

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// JobParameters are the client-supplied settings of an asynchronous crawl.
type JobParameters struct {
	Request  Request `json:"request"`
	Scenario string  `json:"scenario,omitempty"`
}

// Job is the metadata kept for each submitted crawl.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Submitted  time.Time     `json:"submitted_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters JobParameters `json:"parameters"`
	Result     *Result       `json:"result,omitempty"`
	BlobURI    string        `json:"blob_uri,omitempty"`
}

// JobOutcome is recorded when a job finishes.
type JobOutcome struct {
	Status     JobStatus
	FinishedAt time.Time
	ErrorText  string
	Result     *Result
	BlobURI    string
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Params    JobParameters
	Submitted int64
}

// ResultRecord is a finished crawl as persisted by a ResultStore.
type ResultRecord struct {
	JobID      string
	Result     Result
	BlobURI    string
	FinishedAt time.Time
}

// CompletionNotice is published when an asynchronous crawl finishes.
type CompletionNotice struct {
	JobID       string    `json:"job_id"`
	Seed        string    `json:"seed"`
	Origin      string    `json:"origin"`
	TotalNodes  int       `json:"total_nodes"`
	Fingerprint string    `json:"fingerprint"`
	BlobURI     string    `json:"blob_uri,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}
