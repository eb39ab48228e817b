package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/origin-crawler/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	const origin = "http://news.yahoo.com"
	now := time.Now()
	batch := []progress.Event{
		{CrawlID: "c1", TS: now, Stage: progress.StageCrawlStart, Origin: origin},
		{CrawlID: "c1", TS: now, Stage: progress.StageFetchDone, Origin: origin, Node: origin, Neighbors: 2, Dur: 15 * time.Millisecond},
		{CrawlID: "c1", TS: now, Stage: progress.StageFetchError, Origin: origin, Node: origin + "/us", Dur: time.Millisecond},
		{CrawlID: "c1", TS: now, Stage: progress.StageCrawlDone, Origin: origin, Nodes: 4, Dur: 40 * time.Millisecond},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.crawlsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.crawlsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues(origin, "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.fetches.WithLabelValues(origin, "error")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "crawler_fetch_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.crawlNodes, "crawler_crawl_nodes"))
}

func TestPrometheusSinkRunningGaugeIgnoresUnknownCrawls(t *testing.T) {
	t.Parallel()

	sink, err := NewPrometheusSink(prometheus.NewRegistry())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{CrawlID: "a", TS: now, Stage: progress.StageCrawlStart},
		{CrawlID: "a", TS: now, Stage: progress.StageCrawlStart},
		{CrawlID: "b", TS: now, Stage: progress.StageCrawlError},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.crawlsCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register progress collector")
}

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{CrawlID: "c", TS: now, Stage: progress.StageCrawlStart},
		{CrawlID: "c", TS: now, Stage: progress.StageFetchDone, Node: "http://a"},
		{CrawlID: "c", TS: now, Stage: progress.StageCrawlError, Note: "boom"},
	}))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.DebugLevel, entries[1].Level)
	require.Equal(t, zap.WarnLevel, entries[2].Level)
	require.Equal(t, "c", entries[0].ContextMap()["crawl_id"])
	require.NoError(t, sink.Close(context.Background()))
}
