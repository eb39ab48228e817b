package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher returns the outgoing neighbors of a node. Implementations must be
// safe for concurrent use; the crawler never has more than MaxConcurrency
// calls in flight.
type Fetcher interface {
	FetchNeighbors(ctx context.Context, node string) ([]string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, node string) ([]string, error)

// FetchNeighbors calls f.
func (f FetcherFunc) FetchNeighbors(ctx context.Context, node string) ([]string, error) {
	return f(ctx, node)
}

// Frontier records every node admitted to one crawl.
type Frontier interface {
	// TryAdmit returns true for exactly one caller per distinct node.
	TryAdmit(ctx context.Context, node string) (bool, error)
	// Snapshot returns the admitted nodes. Only valid after completion.
	Snapshot(ctx context.Context) ([]string, error)
}

// FrontierFactory builds a fresh Frontier for the crawl with the given ID.
type FrontierFactory func(ctx context.Context, crawlID string) (Frontier, error)

// releaser is implemented by frontiers that hold external resources.
type releaser interface {
	Release(ctx context.Context) error
}

// JobStore persists crawl job metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	StartJob(ctx context.Context, jobID string, startedAt time.Time) error
	FinishJob(ctx context.Context, jobID string, outcome JobOutcome) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// ResultStore persists finished crawl results.
type ResultStore interface {
	SaveResult(ctx context.Context, record ResultRecord) error
	Close() error
}

// BlobStore writes exported artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion notices to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests used to compare result sets.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl and job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
