package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, development := range []bool{true, false} {
		logger, err := New(development)
		require.NoError(t, err)
		require.NotNil(t, logger)
		logger.Info("logger ready", zap.Bool("development", development))
		_ = logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
	}
}

func TestForCrawl(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	ForCrawl(zap.New(core), "c-1", "http://a.test/").Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "c-1", fields["crawl_id"])
	require.Equal(t, "http://a.test/", fields["seed"])

	require.NotNil(t, ForCrawl(nil, "c-2", "x"))
}
