package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/origin-crawler/internal/clock/system"
	"github.com/JakeFAU/origin-crawler/internal/hash/sha256"
	"github.com/JakeFAU/origin-crawler/internal/id/uuid"
	"github.com/JakeFAU/origin-crawler/internal/progress"
)

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger. The crawler logs under the "crawler" name.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEmitter sends progress events to e.
func WithEmitter(e progress.Emitter) Option {
	return func(c *Crawler) {
		c.emitter = e
	}
}

// WithFrontierFactory replaces the in-memory frontier.
func WithFrontierFactory(f FrontierFactory) Option {
	return func(c *Crawler) {
		if f != nil {
			c.newFrontier = f
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Crawler) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator replaces the UUIDv7 generator used for unnamed crawls.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Crawler) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// WithHasher replaces the SHA-256 result fingerprint.
func WithHasher(h Hasher) Option {
	return func(c *Crawler) {
		if h != nil {
			c.hasher = h
		}
	}
}

// Crawler runs crawls. All per-crawl state is created inside Crawl, so one
// Crawler can serve concurrent calls.
type Crawler struct {
	logger      *zap.Logger
	emitter     progress.Emitter
	newFrontier FrontierFactory
	clock       Clock
	ids         IDGenerator
	hasher      Hasher
}

// New builds a Crawler with an in-memory frontier and no progress output.
func New(opts ...Option) *Crawler {
	c := &Crawler{
		logger:      zap.NewNop(),
		newFrontier: NewMemoryFrontierFactory(),
		clock:       system.New(),
		ids:         uuid.NewUUIDGenerator(),
		hasher:      sha256.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl runs req against fetcher with a default Crawler.
func Crawl(ctx context.Context, fetcher Fetcher, req Request) (Result, error) {
	return New().Crawl(ctx, fetcher, req)
}

// Crawl discovers every node reachable from req.Seed within the seed's
// origin and the request's limits. It returns once no unit of work is
// outstanding. If ctx ends first, fetching stops, in-flight work is allowed
// to finish, and the partial result is returned with the context error.
func (c *Crawler) Crawl(ctx context.Context, fetcher Fetcher, req Request) (Result, error) {
	if fetcher == nil {
		return Result{}, invalidRequest("fetcher is required")
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	origin, err := req.OriginPolicy.OriginOf(req.Seed)
	if err != nil {
		return Result{}, &InvalidSeedError{Seed: req.Seed, Err: err}
	}
	if req.ID == "" {
		if req.ID, err = c.ids.NewID(); err != nil {
			return Result{}, fmt.Errorf("generate crawl id: %w", err)
		}
	}
	frontier, err := c.newFrontier(ctx, req.ID)
	if err != nil {
		return Result{}, fmt.Errorf("create frontier: %w", err)
	}
	limiter, err := NewLimiter(req.MaxConcurrency)
	if err != nil {
		return Result{}, err
	}

	r := &run{
		req:        req,
		origin:     origin,
		fetcher:    fetcher,
		frontier:   frontier,
		limiter:    limiter,
		supervisor: NewSupervisor(),
		budget:     newNodeBudget(req.MaxURLs, req.LimitMode),
		logger:     c.logger.With(zap.String("crawl_id", req.ID)),
		emitter:    c.emitter,
		clock:      c.clock,
	}
	if req.Strategy == StrategyPool {
		r.queue = newWorkQueue()
	}
	return r.execute(ctx, c.hasher)
}

// WithDefaults fills the empty strategy, limit mode and origin policy.
func (r Request) WithDefaults() Request {
	if r.Strategy == "" {
		r.Strategy = StrategyPool
	}
	if r.LimitMode == "" {
		r.LimitMode = LimitStrict
	}
	if r.OriginPolicy == "" {
		r.OriginPolicy = DefaultOriginPolicy
	}
	return r
}

// Validate checks limits and enum fields. The seed is checked by Crawl.
func (r Request) Validate() error {
	switch {
	case r.MaxConcurrency < 1:
		return invalidRequest("max concurrency must be >= 1, got %d", r.MaxConcurrency)
	case r.MaxDepth != nil && *r.MaxDepth < 0:
		return invalidRequest("max depth must be >= 0, got %d", *r.MaxDepth)
	case r.MaxURLs != nil && *r.MaxURLs < 1:
		return invalidRequest("max urls must be >= 1, got %d", *r.MaxURLs)
	case r.Strategy != "" && !r.Strategy.Valid():
		return invalidRequest("unknown strategy %q", r.Strategy)
	case r.LimitMode != "" && !r.LimitMode.Valid():
		return invalidRequest("unknown limit mode %q", r.LimitMode)
	case r.OriginPolicy != "" && !r.OriginPolicy.Valid():
		return invalidRequest("unknown origin policy %q", r.OriginPolicy)
	}
	return nil
}

// run holds the state of one crawl.
type run struct {
	req        Request
	origin     string
	fetcher    Fetcher
	frontier   Frontier
	limiter    *Limiter
	supervisor *Supervisor
	budget     *nodeBudget
	queue      *workQueue
	logger     *zap.Logger
	emitter    progress.Emitter
	clock      Clock

	failed  sync.Map
	claimed sync.Map
	stats   runCounters
}

type runCounters struct {
	fetched      atomic.Int64
	fetchErrors  atomic.Int64
	dropped      atomic.Int64
	duplicates   atomic.Int64
	skippedDepth atomic.Int64
	skippedLimit atomic.Int64
	admitErrors  atomic.Int64
}

func (r *run) execute(ctx context.Context, hasher Hasher) (Result, error) {
	started := r.clock.Now()
	r.logger.Info("crawl started",
		zap.String("seed", r.req.Seed),
		zap.String("origin", r.origin),
		zap.Int("max_concurrency", r.req.MaxConcurrency),
		zap.String("strategy", string(r.req.Strategy)),
		zap.Any("max_depth", r.req.MaxDepth),
		zap.Any("max_urls", r.req.MaxURLs),
	)
	r.emit(progress.Event{Stage: progress.StageCrawlStart, Node: r.req.Seed})

	admitted, err := r.frontier.TryAdmit(ctx, r.req.Seed)
	if err != nil {
		r.releaseFrontier(ctx)
		err = fmt.Errorf("admit seed: %w", err)
		r.emit(progress.Event{Stage: progress.StageCrawlError, Node: r.req.Seed, Note: err.Error()})
		return Result{}, err
	}
	if !admitted {
		// The frontier belongs to another crawl; it must not be released here.
		err = fmt.Errorf("%w: %q", ErrCrawlIDInUse, r.req.ID)
		r.logger.Warn("crawl refused", zap.Error(err))
		r.emit(progress.Event{Stage: progress.StageCrawlError, Node: r.req.Seed, Note: err.Error()})
		return Result{}, err
	}
	r.budget.force()
	r.claim(r.req.Seed)

	var workers errgroup.Group
	if r.queue != nil {
		for i := 0; i < r.req.MaxConcurrency; i++ {
			workers.Go(func() error {
				r.work(ctx)
				return nil
			})
		}
	}
	r.supervisor.Begin()
	r.schedule(ctx, task{node: r.req.Seed})

	waitErr := r.supervisor.WaitForCompletion(ctx)
	if waitErr != nil {
		// Units still in flight observe the cancelled context and end.
		<-r.supervisor.Done()
	} else if ctx.Err() != nil {
		waitErr = fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
	if r.queue != nil {
		r.queue.close()
		_ = workers.Wait()
	}

	result, err := r.collect(context.WithoutCancel(ctx), hasher, started)
	r.releaseFrontier(ctx)
	if err == nil {
		err = waitErr
	}
	r.finish(result, err)
	return result, err
}

// work is the loop of one pool worker.
func (r *run) work(ctx context.Context) {
	for {
		t, ok := r.queue.pop()
		if !ok {
			return
		}
		r.visit(ctx, t)
	}
}

func (r *run) schedule(ctx context.Context, t task) {
	if r.queue != nil {
		r.queue.push(t)
		return
	}
	go r.visit(ctx, t)
}

// visit is one unit of work. Every path ends with exactly one End.
func (r *run) visit(ctx context.Context, t task) {
	defer r.supervisor.End()

	if r.budget.reached() {
		r.stats.skippedLimit.Add(1)
		return
	}
	if r.req.MaxDepth != nil && t.depth >= *r.req.MaxDepth {
		r.stats.skippedDepth.Add(1)
		return
	}
	if ctx.Err() != nil {
		return
	}
	neighbors, ok := r.fetch(ctx, t)
	if !ok {
		return
	}
	for _, node := range neighbors {
		if ctx.Err() != nil {
			return
		}
		if !r.admit(ctx, node) {
			continue
		}
		r.supervisor.Begin()
		r.schedule(ctx, task{node: node, depth: t.depth + 1})
	}
}

// fetch calls the Fetcher while holding a limiter slot. The slot is
// released before any neighbor is admitted or scheduled.
func (r *run) fetch(ctx context.Context, t task) ([]string, bool) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return nil, false
	}
	start := r.clock.Now()
	neighbors, err := r.fetcher.FetchNeighbors(ctx, t.node)
	r.limiter.Release()
	dur := r.clock.Now().Sub(start)

	if err != nil {
		r.stats.fetchErrors.Add(1)
		r.failed.Store(t.node, struct{}{})
		r.logger.Debug("fetch failed", zap.String("node", t.node), zap.Int("depth", t.depth), zap.Error(err))
		r.emit(progress.Event{
			Stage: progress.StageFetchError,
			Node:  t.node,
			Depth: t.depth,
			Dur:   dur,
			Note:  err.Error(),
		})
		return nil, false
	}
	r.stats.fetched.Add(1)
	r.emit(progress.Event{
		Stage:     progress.StageFetchDone,
		Node:      t.node,
		Depth:     t.depth,
		Neighbors: len(neighbors),
		Dur:       dur,
	})
	return neighbors, true
}

// admit runs the origin filter, the node budget and the frontier, in that
// order, and reports whether node should be scheduled.
func (r *run) admit(ctx context.Context, node string) bool {
	origin, err := r.req.OriginPolicy.OriginOf(node)
	if err != nil {
		r.stats.dropped.Add(1)
		r.logger.Debug("dropping malformed neighbor", zap.String("node", node), zap.Error(err))
		return false
	}
	if !SameOrigin(r.origin, origin) {
		r.stats.dropped.Add(1)
		return false
	}
	if !r.claim(node) {
		r.stats.duplicates.Add(1)
		return false
	}
	if !r.budget.reserve() {
		r.unclaim(node)
		r.stats.skippedLimit.Add(1)
		return false
	}
	admitted, err := r.frontier.TryAdmit(ctx, node)
	if err != nil {
		r.unclaim(node)
		r.budget.refund()
		r.stats.admitErrors.Add(1)
		r.logger.Warn("frontier admit failed", zap.String("node", node), zap.Error(err))
		return false
	}
	if !admitted {
		r.budget.refund()
		r.stats.duplicates.Add(1)
		return false
	}
	return true
}

// claim lets only the first admitter of a node reserve budget when
// MaxURLs is set, so duplicate races never hold a reservation. Unbounded
// crawls rely on the frontier alone.
func (r *run) claim(node string) bool {
	if !r.budget.limited {
		return true
	}
	_, seen := r.claimed.LoadOrStore(node, struct{}{})
	return !seen
}

func (r *run) unclaim(node string) {
	if r.budget.limited {
		r.claimed.Delete(node)
	}
}

func (r *run) collect(ctx context.Context, hasher Hasher, started time.Time) (Result, error) {
	nodes, err := r.frontier.Snapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("snapshot frontier: %w", err)
	}
	sort.Strings(nodes)
	fingerprint, err := hasher.Hash([]byte(strings.Join(nodes, "\n")))
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint result: %w", err)
	}
	var failed []string
	r.failed.Range(func(key, _ any) bool {
		failed = append(failed, key.(string))
		return true
	})
	sort.Strings(failed)

	return Result{
		ID:          r.req.ID,
		Seed:        r.req.Seed,
		Origin:      r.origin,
		Nodes:       nodes,
		Failed:      failed,
		Fingerprint: fingerprint,
		Stats: Stats{
			Admitted:       len(nodes),
			Fetched:        int(r.stats.fetched.Load()),
			FetchErrors:    int(r.stats.fetchErrors.Load()),
			Dropped:        int(r.stats.dropped.Load()),
			Duplicates:     int(r.stats.duplicates.Load()),
			SkippedDepth:   int(r.stats.skippedDepth.Load()),
			SkippedLimit:   int(r.stats.skippedLimit.Load()),
			AdmitErrors:    int(r.stats.admitErrors.Load()),
			PeakInFlight:   r.limiter.Peak(),
			MaxConcurrency: r.req.MaxConcurrency,
			Strategy:       r.req.Strategy,
			StartedAt:      started,
			Elapsed:        r.clock.Now().Sub(started),
		},
	}, nil
}

func (r *run) finish(result Result, err error) {
	if err != nil {
		r.logger.Warn("crawl ended early",
			zap.Int("nodes", len(result.Nodes)),
			zap.Error(err),
		)
		r.emit(progress.Event{
			Stage: progress.StageCrawlError,
			Node:  r.req.Seed,
			Nodes: len(result.Nodes),
			Dur:   result.Stats.Elapsed,
			Note:  err.Error(),
		})
		return
	}
	r.logger.Info("crawl completed",
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("fetched", result.Stats.Fetched),
		zap.Int("fetch_errors", result.Stats.FetchErrors),
		zap.Int("peak_in_flight", result.Stats.PeakInFlight),
		zap.Duration("elapsed", result.Stats.Elapsed),
	)
	r.emit(progress.Event{
		Stage: progress.StageCrawlDone,
		Node:  r.req.Seed,
		Nodes: len(result.Nodes),
		Dur:   result.Stats.Elapsed,
	})
}

func (r *run) releaseFrontier(ctx context.Context) {
	rel, ok := r.frontier.(releaser)
	if !ok {
		return
	}
	if err := rel.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("frontier release failed", zap.Error(err))
	}
}

func (r *run) emit(evt progress.Event) {
	if r.emitter == nil {
		return
	}
	evt.CrawlID = r.req.ID
	evt.Origin = r.origin
	if evt.TS.IsZero() {
		evt.TS = r.clock.Now()
	}
	r.emitter.Emit(evt)
}
