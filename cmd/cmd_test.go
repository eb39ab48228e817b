package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CRAWLER_CRAWLER_SCENARIO_LATENCY", "0s")
	t.Setenv("CRAWLER_PROGRESS_ENABLED", "false")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCrawlScenario(t *testing.T) {
	out, err := runCLI(t, "crawl", "--scenario", "example1", "--concurrency", "4")
	require.NoError(t, err)

	var res crawler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "http://news.yahoo.com/news/topics/", res.Seed)
	require.Len(t, res.Nodes, 4)
	for _, node := range res.Nodes {
		require.Contains(t, node, "news.yahoo.com")
	}
}

func TestCrawlScenarioMaxURLs(t *testing.T) {
	out, err := runCLI(t, "crawl", "--scenario", "example1", "--max-urls", "2")
	require.NoError(t, err)

	var res crawler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Nodes, 2)
}

func TestCrawlGraphFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
seed: http://a.test/
edges:
  http://a.test/: [http://a.test/b, http://other.test/]
  http://a.test/b: [http://a.test/]
`), 0o600))

	out, err := runCLI(t, "crawl", "--graph", path)
	require.NoError(t, err)

	var res crawler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, []string{"http://a.test/", "http://a.test/b"}, res.Nodes)
}

func TestCrawlRejectsBadFlags(t *testing.T) {
	_, err := runCLI(t, "crawl", "--scenario", "example1", "--strategy", "fork")
	require.ErrorIs(t, err, crawler.ErrInvalidRequest)

	_, err = runCLI(t, "crawl", "--scenario", "nope")
	require.Error(t, err)

	_, err = runCLI(t, "crawl", "--scenario", "example1", "--graph", "x.yaml")
	require.Error(t, err)
}

func TestBenchmarkScenario(t *testing.T) {
	out, err := runCLI(t, "benchmark", "--scenario", "example2", "--concurrency", "3")
	require.NoError(t, err)

	var report crawler.BenchmarkReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.True(t, report.SameResult)
	require.Equal(t, 1, report.Sequential.MaxConcurrency)
	require.Equal(t, 3, report.Concurrent.MaxConcurrency)
}

func TestScenariosList(t *testing.T) {
	out, err := runCLI(t, "scenarios")
	require.NoError(t, err)
	require.Equal(t, []string{"example1", "example2"}, strings.Fields(out))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "scenarios")
	require.Error(t, err)
	require.Contains(t, err.Error(), "load config")
}
