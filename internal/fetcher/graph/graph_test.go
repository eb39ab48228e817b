package graph_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher/graph"
)

func TestScenarioExample1(t *testing.T) {
	t.Parallel()
	for _, strategy := range []crawler.Strategy{crawler.StrategyPool, crawler.StrategySpawn} {
		f, err := graph.Scenario("example1", time.Millisecond)
		require.NoError(t, err)
		res, err := crawler.Crawl(context.Background(), f, crawler.Request{
			Seed:           f.Seed(),
			MaxConcurrency: 10,
			Strategy:       strategy,
		})
		require.NoError(t, err)
		require.ElementsMatch(t, []string{
			"http://news.yahoo.com",
			"http://news.yahoo.com/news",
			"http://news.yahoo.com/news/topics/",
			"http://news.yahoo.com/us",
		}, res.Nodes)
		require.NotContains(t, res.Nodes, "http://news.google.com")
	}
}

func TestScenarioExample2(t *testing.T) {
	t.Parallel()
	f, err := graph.Scenario("EXAMPLE2", time.Millisecond)
	require.NoError(t, err)
	res, err := crawler.Crawl(context.Background(), f, crawler.Request{Seed: f.Seed(), MaxConcurrency: 4})
	require.NoError(t, err)
	require.Equal(t, []string{"http://news.google.com"}, res.Nodes)
}

func TestScenarioExample1SequentialMatchesConcurrent(t *testing.T) {
	t.Parallel()
	f, err := graph.Scenario("example1", 0)
	require.NoError(t, err)
	report, err := crawler.New().Benchmark(context.Background(), f, crawler.Request{Seed: f.Seed(), MaxConcurrency: 8})
	require.NoError(t, err)
	require.True(t, report.SameResult)
	require.Equal(t, 4, report.Sequential.TotalNodes)
}

func TestUnknownScenario(t *testing.T) {
	t.Parallel()
	_, err := graph.Scenario("example3", 0)
	require.ErrorIs(t, err, graph.ErrUnknownScenario)
	require.Equal(t, []string{"example1", "example2"}, graph.Scenarios())
}

func TestFetchNeighborsHonorsContext(t *testing.T) {
	t.Parallel()
	f := graph.New(map[string][]string{"http://a.test/": {"http://a.test/b"}}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.FetchNeighbors(ctx, "http://a.test/")
	require.ErrorIs(t, err, context.Canceled)

	out, err := graph.New(map[string][]string{"http://a.test/": {"http://a.test/b"}}, 0).FetchNeighbors(context.Background(), "http://a.test/missing")
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`seed: http://a.test/
edges:
  http://a.test/:
    - http://a.test/b
    - http://b.test/
  http://a.test/b:
    - http://a.test/
`), 0o600))

	f, err := graph.LoadFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, "http://a.test/", f.Seed())
	res, err := crawler.Crawl(context.Background(), f, crawler.Request{Seed: f.Seed(), MaxConcurrency: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"http://a.test/", "http://a.test/b"}, res.Nodes)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("seed: x\n"), 0o600))
	_, err = graph.LoadFile(empty, 0)
	require.Error(t, err)

	_, err = graph.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), 0)
	require.Error(t, err)
}
