package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/config"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Crawler.ScenarioLatency = 0
	return cfg
}

func TestNewRuntimeCrawlsScenario(t *testing.T) {
	ctx := context.Background()
	rt, err := NewRuntime(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close(ctx)) })

	f, err := rt.Fetchers.Resolve("example1")
	require.NoError(t, err)
	res, err := rt.Crawler.Crawl(ctx, f, crawler.Request{Seed: "http://news.yahoo.com/news/topics/"})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 4)
	require.NoError(t, rt.Ping(ctx))
}

func TestNewRuntimeWithoutLiveFetcher(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Fetcher.Enabled = false
	cfg.Progress.Enabled = false
	rt, err := NewRuntime(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close(ctx)) })

	_, err = rt.Fetchers.Resolve("")
	require.ErrorIs(t, err, fetcher.ErrNoLiveFetcher)
}

func TestNewRuntimeRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Frontier.Backend = "redis"
	cfg.Frontier.RedisAddr = "127.0.0.1:1"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRuntime(ctx, cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "redis ping")
}

func TestNewAppInMemory(t *testing.T) {
	ctx := context.Background()
	app, err := New(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(ctx)) })

	require.NotNil(t, app.Jobs)
	require.NotNil(t, app.Blobs)
	require.Nil(t, app.Results)
	require.Nil(t, app.Publisher)

	rec := httptest.NewRecorder()
	app.API.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAppLocalStorage(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Backend = "local"
	cfg.Storage.LocalDir = t.TempDir()
	app, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(ctx)) })
	require.NotNil(t, app.Blobs)
}

func TestAppRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	app, err := New(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
