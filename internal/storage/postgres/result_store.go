package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// ResultStore writes finished crawl results. It owns the pool and closes
// it on Close.
type ResultStore struct {
	db    DB
	table string
}

// NewResultStore wraps db. An empty table name selects crawl_results.
func NewResultStore(db DB, table string) (*ResultStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultResultsTable)
	if err != nil {
		return nil, err
	}
	return &ResultStore{db: db, table: table}, nil
}

// SaveResult upserts the result row for record.JobID.
func (s *ResultStore) SaveResult(ctx context.Context, record crawler.ResultRecord) error {
	if record.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	res := record.Result
	nodes, err := json.Marshal(nonNil(res.Nodes))
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}
	failed, err := json.Marshal(nonNil(res.Failed))
	if err != nil {
		return fmt.Errorf("marshal failed nodes: %w", err)
	}
	stats, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id, crawl_id, seed, origin, total_nodes, nodes, failed, fingerprint, stats, blob_uri, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (job_id) DO UPDATE SET
	crawl_id = EXCLUDED.crawl_id,
	total_nodes = EXCLUDED.total_nodes,
	nodes = EXCLUDED.nodes,
	failed = EXCLUDED.failed,
	fingerprint = EXCLUDED.fingerprint,
	stats = EXCLUDED.stats,
	blob_uri = EXCLUDED.blob_uri,
	finished_at = EXCLUDED.finished_at`, s.table)

	_, err = s.db.Exec(ctx, query,
		record.JobID,
		res.ID,
		res.Seed,
		res.Origin,
		len(res.Nodes),
		nodes,
		failed,
		res.Fingerprint,
		stats,
		record.BlobURI,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert crawl result: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *ResultStore) Close() error {
	if s != nil && s.db != nil {
		s.db.Close()
	}
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
