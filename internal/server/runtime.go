// Package server builds the crawler service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/clock/system"
	"github.com/JakeFAU/origin-crawler/internal/config"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/origin-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/origin-crawler/internal/fetcher/headless"
	redisfrontier "github.com/JakeFAU/origin-crawler/internal/frontier/redis"
	"github.com/JakeFAU/origin-crawler/internal/hash/sha256"
	"github.com/JakeFAU/origin-crawler/internal/id/uuid"
	"github.com/JakeFAU/origin-crawler/internal/progress"
	progresssinks "github.com/JakeFAU/origin-crawler/internal/progress/sinks"
)

// Runtime holds what a crawl needs: the crawler, its fetchers and the
// shared infrastructure behind them. The CLI uses it directly; App adds
// the HTTP service on top.
type Runtime struct {
	Crawler  *crawler.Crawler
	Fetchers *fetcher.Registry

	cfg      config.Config
	logger   *zap.Logger
	redis    *goredis.Client
	hub      *progress.Hub
	headless *headlessfetcher.Fetcher
}

// NewRuntime wires the crawler from cfg.
func NewRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{cfg: cfg, logger: logger}

	opts := []crawler.Option{
		crawler.WithLogger(logger.Named("crawler")),
		crawler.WithClock(system.New()),
		crawler.WithIDGenerator(uuid.NewUUIDGenerator()),
		crawler.WithHasher(sha256.New()),
	}

	factory, err := rt.setupFrontier(ctx)
	if err != nil {
		return nil, err
	}
	if factory != nil {
		opts = append(opts, crawler.WithFrontierFactory(factory))
	}

	if hub := rt.setupProgress(ctx); hub != nil {
		opts = append(opts, crawler.WithEmitter(hub))
	}

	live, err := rt.setupLiveFetcher()
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Fetchers = fetcher.NewRegistry(live, cfg.Crawler.ScenarioLatency)
	rt.Crawler = crawler.New(opts...)
	return rt, nil
}

func (rt *Runtime) setupFrontier(ctx context.Context) (crawler.FrontierFactory, error) {
	if rt.cfg.Frontier.Backend != "redis" {
		rt.logger.Info("using in-memory frontier")
		return nil, nil
	}
	rt.redis = goredis.NewClient(&goredis.Options{
		Addr:     rt.cfg.Frontier.RedisAddr,
		Password: rt.cfg.Frontier.RedisPassword,
		DB:       rt.cfg.Frontier.RedisDB,
	})
	if err := rt.redis.Ping(ctx).Err(); err != nil {
		_ = rt.redis.Close()
		rt.redis = nil
		return nil, fmt.Errorf("redis ping %s: %w", rt.cfg.Frontier.RedisAddr, err)
	}
	rt.logger.Info("using redis frontier",
		zap.String("addr", rt.cfg.Frontier.RedisAddr),
		zap.String("prefix", rt.cfg.Frontier.KeyPrefix),
		zap.Duration("ttl", rt.cfg.Frontier.TTL),
		zap.Bool("keep_on_release", rt.cfg.Frontier.KeepOnRelease),
	)
	return redisfrontier.NewFactory(rt.redis, redisfrontier.Config{
		Prefix:        rt.cfg.Frontier.KeyPrefix,
		TTL:           rt.cfg.Frontier.TTL,
		KeepOnRelease: rt.cfg.Frontier.KeepOnRelease,
	}), nil
}

func (rt *Runtime) setupProgress(ctx context.Context) *progress.Hub {
	if !rt.cfg.Progress.Enabled {
		rt.logger.Info("progress tracking disabled")
		return nil
	}
	var sinkList []progress.Sink
	promSink, err := progresssinks.NewPrometheusSink(nil)
	if err != nil {
		rt.logger.Warn("prometheus progress sink unavailable", zap.Error(err))
	} else {
		sinkList = append(sinkList, promSink)
	}
	if rt.cfg.Progress.LogEvents {
		sinkList = append(sinkList, progresssinks.NewLogSink(rt.logger.Named("progress_log")))
	}
	if len(sinkList) == 0 {
		rt.logger.Warn("progress tracking enabled but no sinks configured")
		return nil
	}
	hubCfg := progress.Config{
		BufferSize:     rt.cfg.Progress.BufferSize,
		MaxBatchEvents: rt.cfg.Progress.BatchMaxItems,
		MaxBatchWait:   rt.cfg.Progress.BatchMaxWait,
		SinkTimeout:    rt.cfg.Progress.SinkTimeout,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         rt.logger.Named("progress_hub"),
	}
	rt.hub = progress.NewHub(hubCfg, sinkList...)
	rt.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("sinks", len(sinkList)),
	)
	return rt.hub
}

// setupLiveFetcher returns nil when live fetching is disabled.
func (rt *Runtime) setupLiveFetcher() (crawler.Fetcher, error) {
	if !rt.cfg.Fetcher.Enabled {
		rt.logger.Info("live fetcher disabled; only scenarios can be crawled")
		return nil, nil
	}
	primary := collyfetcher.New(collyfetcher.Config{
		UserAgent:   rt.cfg.Fetcher.UserAgent,
		Timeout:     rt.cfg.Fetcher.Timeout,
		MaxBodySize: rt.cfg.Fetcher.MaxBodySize,
	})
	rt.logger.Info("using colly fetcher", zap.String("user_agent", rt.cfg.Fetcher.UserAgent))
	if !rt.cfg.Headless.Enabled {
		return primary, nil
	}

	headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       rt.cfg.Headless.MaxParallel,
		UserAgent:         rt.cfg.Fetcher.UserAgent,
		NavigationTimeout: rt.cfg.Headless.NavTimeout,
		SettleDelay:       rt.cfg.Headless.SettleDelay,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	rt.headless = headless
	detector := fetcher.NewHeuristicDetector(
		rt.cfg.Fetcher.DetectorMinHTMLBytes,
		rt.cfg.Fetcher.DetectorSelectors,
		rt.cfg.Fetcher.DetectorKeywords,
	)
	rt.logger.Info("headless fallback enabled", zap.Int("max_parallel", rt.cfg.Headless.MaxParallel))
	return fetcher.NewAdaptive(primary, headless, detector, rt.logger.Named("fetcher")), nil
}

// Ping checks the shared frontier store.
func (rt *Runtime) Ping(ctx context.Context) error {
	if rt.redis == nil {
		return nil
	}
	if err := rt.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close drains progress events and releases clients.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.hub != nil {
		if err := rt.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub close: %w", err))
		}
		rt.hub = nil
	}
	if rt.headless != nil {
		rt.headless.Close()
		rt.headless = nil
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
		rt.redis = nil
	}
	return errors.Join(errs...)
}
