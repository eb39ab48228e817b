package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/config"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher/graph"
	"github.com/JakeFAU/origin-crawler/internal/logging"
	"github.com/JakeFAU/origin-crawler/internal/server"
)

// crawlFlags are shared by crawl and benchmark.
type crawlFlags struct {
	seed         string
	scenario     string
	graphFile    string
	maxDepth     int
	maxURLs      int
	concurrency  int
	strategy     string
	limitMode    string
	originPolicy string
}

func (f *crawlFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.seed, "seed", "", "start URL (defaults to the scenario or graph seed)")
	flags.StringVar(&f.scenario, "scenario", "", "built-in test scenario to crawl instead of live pages")
	flags.StringVar(&f.graphFile, "graph", "", "YAML link graph to crawl instead of live pages")
	flags.IntVar(&f.maxDepth, "max-depth", 0, "maximum link depth from the seed")
	flags.IntVar(&f.maxURLs, "max-urls", 0, "maximum number of admitted URLs")
	flags.IntVar(&f.concurrency, "concurrency", 0, "maximum concurrent fetches")
	flags.StringVar(&f.strategy, "strategy", "", "scheduling strategy: pool or spawn")
	flags.StringVar(&f.limitMode, "limit-mode", "", "URL limit mode: strict or soft")
	flags.StringVar(&f.originPolicy, "origin-policy", "", "origin policy: scheme_host, host or site")
	cmd.MarkFlagsMutuallyExclusive("scenario", "graph")
}

// seeder is implemented by graph fetchers that know their start node.
type seeder interface {
	Seed() string
}

// resolve picks the fetcher and builds the request from config and flags.
func (f *crawlFlags) resolve(cmd *cobra.Command, cfg config.Config, rt *server.Runtime) (crawler.Fetcher, crawler.Request, error) {
	var (
		fetch crawler.Fetcher
		err   error
	)
	if f.graphFile != "" {
		fetch, err = graph.LoadFile(f.graphFile, cfg.Crawler.ScenarioLatency)
	} else {
		fetch, err = rt.Fetchers.Resolve(f.scenario)
	}
	if err != nil {
		return nil, crawler.Request{}, err
	}

	seed := f.seed
	if s, ok := fetch.(seeder); ok && seed == "" {
		seed = s.Seed()
	}
	if seed == "" {
		return nil, crawler.Request{}, fmt.Errorf("%w: --seed is required", crawler.ErrInvalidRequest)
	}

	req := cfg.Crawler.DefaultRequest(seed)
	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		req.MaxDepth = crawler.Bound(f.maxDepth)
	}
	if flags.Changed("max-urls") {
		req.MaxURLs = crawler.Bound(f.maxURLs)
	}
	if flags.Changed("concurrency") {
		req.MaxConcurrency = f.concurrency
	}
	if f.strategy != "" {
		req.Strategy = crawler.Strategy(f.strategy)
	}
	if f.limitMode != "" {
		req.LimitMode = crawler.LimitMode(f.limitMode)
	}
	if f.originPolicy != "" {
		req.OriginPolicy = crawler.OriginPolicy(f.originPolicy)
	}
	if err := req.WithDefaults().Validate(); err != nil {
		return nil, crawler.Request{}, err
	}
	return fetch, req, nil
}

// withRuntime builds a Runtime for one command and closes it afterwards.
func withRuntime(ctx context.Context, fn func(e *env, rt *server.Runtime) error) error {
	e, err := resolveEnv(ctx)
	if err != nil {
		return err
	}
	rt, err := server.NewRuntime(ctx, e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("init runtime: %w", err)
	}
	defer func() {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("failed to close runtime", zap.Error(cerr))
		}
	}()
	return fn(e, rt)
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl one origin and print the result",
		Long: `Crawls every page reachable from the seed without leaving its origin
and prints the result as JSON. An interrupted crawl still prints the pages
found so far.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(e *env, rt *server.Runtime) error {
				fetch, req, err := flags.resolve(cmd, e.cfg, rt)
				if err != nil {
					return err
				}
				res, crawlErr := rt.Crawler.Crawl(cmd.Context(), fetch, req)
				logger := logging.ForCrawl(e.logger, res.ID, req.Seed)
				if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) && !errors.Is(crawlErr, context.DeadlineExceeded) {
					return fmt.Errorf("crawl: %w", crawlErr)
				}
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if crawlErr != nil {
					logger.Warn("crawl interrupted; result is partial", zap.Int("nodes", len(res.Nodes)), zap.Error(crawlErr))
					return crawlErr
				}
				logger.Info("crawl finished",
					zap.Int("nodes", len(res.Nodes)),
					zap.Int("failed", len(res.Failed)),
					zap.Duration("elapsed", res.Stats.Elapsed),
				)
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
