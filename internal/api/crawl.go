package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/metrics"
)

// crawlRequest is the body of the synchronous crawl and benchmark routes.
type crawlRequest struct {
	StartURL          string `json:"start_url"`
	MaxDepth          *int   `json:"max_depth"`
	MaxURLs           *int   `json:"max_urls"`
	UseMultiThreading *bool  `json:"use_multi_threading"`
	MaxConcurrency    int    `json:"max_concurrency"`
	TestScenario      string `json:"test_scenario"`
	Strategy          string `json:"strategy"`
	LimitMode         string `json:"limit_mode"`
	OriginPolicy      string `json:"origin_policy"`
}

type crawlResponse struct {
	CrawledURLs        []string `json:"crawled_urls"`
	TotalURLs          int      `json:"total_urls"`
	TimeElapsedMs      int64    `json:"time_elapsed_ms"`
	UsedMultiThreading bool     `json:"used_multi_threading"`
	ThreadsUsed        int      `json:"threads_used"`
	StartURL           string   `json:"start_url"`
	Hostname           string   `json:"hostname"`
	FailedURLs         []string `json:"failed_urls"`
	Fingerprint        string   `json:"fingerprint"`
	Partial            bool     `json:"partial,omitempty"`
	Error              string   `json:"error,omitempty"`
}

type benchmarkResponse struct {
	StartURL             string  `json:"start_url"`
	SingleThreadedTimeMs int64   `json:"single_threaded_time_ms"`
	MultiThreadedTimeMs  int64   `json:"multi_threaded_time_ms"`
	SpeedupFactor        float64 `json:"speedup_factor"`
	URLsCrawled          int     `json:"urls_crawled"`
	ThreadsUsed          int     `json:"threads_used"`
	SameResult           bool    `json:"same_result"`

	Report crawler.BenchmarkReport `json:"report"`
}

func (c crawlRequest) multiThreaded() bool {
	return c.UseMultiThreading == nil || *c.UseMultiThreading
}

// toRequest merges the body with configured defaults.
func (s *Server) toRequest(body crawlRequest) (crawler.Request, error) {
	if body.StartURL == "" {
		return crawler.Request{}, fmt.Errorf("%w: start_url is required", crawler.ErrInvalidRequest)
	}
	req := s.cfg.Crawler.DefaultRequest(body.StartURL)
	if body.MaxDepth != nil {
		req.MaxDepth = crawler.Bound(*body.MaxDepth)
	}
	if body.MaxURLs != nil {
		req.MaxURLs = crawler.Bound(*body.MaxURLs)
	}
	if body.MaxConcurrency != 0 {
		req.MaxConcurrency = body.MaxConcurrency
	}
	if !body.multiThreaded() {
		req.MaxConcurrency = 1
	}
	if body.Strategy != "" {
		req.Strategy = crawler.Strategy(body.Strategy)
	}
	if body.LimitMode != "" {
		req.LimitMode = crawler.LimitMode(body.LimitMode)
	}
	if body.OriginPolicy != "" {
		req.OriginPolicy = crawler.OriginPolicy(body.OriginPolicy)
	}
	if err := req.WithDefaults().Validate(); err != nil {
		return crawler.Request{}, err
	}
	return req, nil
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
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
	f, err := s.deps.Fetchers.Resolve(body.TestScenario)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	logger := s.logger.With(zap.String("request_id", RequestID(r.Context())), zap.String("seed", req.Seed))
	logger.Info("starting crawl",
		zap.Bool("multi_threaded", body.multiThreaded()),
		zap.Int("max_concurrency", req.MaxConcurrency),
		zap.String("scenario", body.TestScenario),
	)
	result, err := s.deps.Crawler.Crawl(r.Context(), f, req)
	partial := err != nil && errors.Is(err, context.DeadlineExceeded) && len(result.Nodes) > 0
	if err != nil && !partial {
		metrics.ObserveCrawl(req.Seed, "sync", "failed", 0)
		logger.Warn("crawl failed", zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	status := "success"
	if partial {
		status = "partial"
	}
	metrics.ObserveCrawl(req.Seed, "sync", status, len(result.Nodes))
	logger.Info("crawl completed", zap.Int("nodes", len(result.Nodes)), zap.Duration("elapsed", result.Stats.Elapsed))

	resp := crawlResponse{
		CrawledURLs:        result.Nodes,
		TotalURLs:          len(result.Nodes),
		TimeElapsedMs:      result.Stats.Elapsed.Milliseconds(),
		UsedMultiThreading: body.multiThreaded(),
		ThreadsUsed:        result.Stats.MaxConcurrency,
		StartURL:           req.Seed,
		Hostname:           hostname(req.Seed),
		FailedURLs:         nonNil(result.Failed),
		Fingerprint:        result.Fingerprint,
		Partial:            partial,
	}
	if partial {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) benchmark(w http.ResponseWriter, r *http.Request) {
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
	f, err := s.deps.Fetchers.Resolve(body.TestScenario)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	report, err := s.deps.Crawler.Benchmark(r.Context(), f, req)
	if err != nil {
		metrics.ObserveCrawl(req.Seed, "benchmark", "failed", 0)
		s.logger.Warn("benchmark failed", zap.String("seed", req.Seed), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	metrics.ObserveCrawl(req.Seed, "benchmark", "success", report.Concurrent.TotalNodes)
	writeJSON(w, http.StatusOK, benchmarkResponse{
		StartURL:             req.Seed,
		SingleThreadedTimeMs: report.Sequential.Elapsed.Milliseconds(),
		MultiThreadedTimeMs:  report.Concurrent.Elapsed.Milliseconds(),
		SpeedupFactor:        report.Speedup,
		URLsCrawled:          report.Sequential.TotalNodes,
		ThreadsUsed:          report.Concurrent.MaxConcurrency,
		SameResult:           report.SameResult,
		Report:               report,
	})
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
