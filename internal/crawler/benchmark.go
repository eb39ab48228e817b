package crawler

import (
	"context"
	"fmt"
	"time"
)

// BenchmarkRun is one leg of a benchmark.
type BenchmarkRun struct {
	MaxConcurrency int           `json:"max_concurrency"`
	Elapsed        time.Duration `json:"elapsed"`
	TotalNodes     int           `json:"total_nodes"`
	Fingerprint    string        `json:"fingerprint"`
	PeakInFlight   int           `json:"peak_in_flight"`
}

// BenchmarkReport compares a sequential crawl with a concurrent one.
type BenchmarkReport struct {
	Seed       string       `json:"seed"`
	Sequential BenchmarkRun `json:"sequential"`
	Concurrent BenchmarkRun `json:"concurrent"`
	// Speedup is sequential time over concurrent time.
	Speedup float64 `json:"speedup"`
	// SameResult reports whether both runs admitted the same node set.
	SameResult bool `json:"same_result"`
}

// Benchmark crawls req twice, first with a concurrency of 1 and then with
// req.MaxConcurrency, and compares the two.
func (c *Crawler) Benchmark(ctx context.Context, fetcher Fetcher, req Request) (BenchmarkReport, error) {
	sequential := req
	sequential.ID = ""
	sequential.MaxConcurrency = 1
	seqResult, err := c.Crawl(ctx, fetcher, sequential)
	if err != nil {
		return BenchmarkReport{}, fmt.Errorf("sequential run: %w", err)
	}

	concurrent := req
	concurrent.ID = ""
	conResult, err := c.Crawl(ctx, fetcher, concurrent)
	if err != nil {
		return BenchmarkReport{}, fmt.Errorf("concurrent run: %w", err)
	}

	report := BenchmarkReport{
		Seed:       req.Seed,
		Sequential: benchmarkRun(seqResult),
		Concurrent: benchmarkRun(conResult),
		SameResult: seqResult.Fingerprint == conResult.Fingerprint,
	}
	if conResult.Stats.Elapsed > 0 {
		report.Speedup = float64(seqResult.Stats.Elapsed) / float64(conResult.Stats.Elapsed)
	}
	return report, nil
}

func benchmarkRun(res Result) BenchmarkRun {
	return BenchmarkRun{
		MaxConcurrency: res.Stats.MaxConcurrency,
		Elapsed:        res.Stats.Elapsed,
		TotalNodes:     len(res.Nodes),
		Fingerprint:    res.Fingerprint,
		PeakInFlight:   res.Stats.PeakInFlight,
	}
}
