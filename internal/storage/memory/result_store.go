package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// ResultStore keeps finished crawl results in memory.
type ResultStore struct {
	mu      sync.RWMutex
	records map[string]crawler.ResultRecord
}

// NewResultStore constructs a ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{records: make(map[string]crawler.ResultRecord)}
}

// SaveResult stores record, replacing any earlier record for the job.
func (s *ResultStore) SaveResult(_ context.Context, record crawler.ResultRecord) error {
	s.mu.Lock()
	s.records[record.JobID] = record
	s.mu.Unlock()
	return nil
}

// Result returns the record saved for jobID.
func (s *ResultStore) Result(jobID string) (crawler.ResultRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[jobID]
	return record, ok
}

// Close is a no-op.
func (s *ResultStore) Close() error { return nil }
