package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	f, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 2, cap(f.limiter))
	require.Equal(t, defaultNavigationTimeout, f.cfg.NavigationTimeout)
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	f, err := NewChromedp(Config{MaxParallel: 1})
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.acquire(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, f.acquire(ctx), context.DeadlineExceeded)
	f.release()
	require.NoError(t, f.acquire(context.Background()))
	f.release()
}

func TestResponseMetaSnapshot(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://example.com/app.js"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 203, URL: "https://example.com/rendered"},
	})
	status, url := meta.snapshot("https://req", "https://final")
	require.Equal(t, 203, status)
	require.Equal(t, "https://example.com/rendered", url)

	status, url = (&responseMeta{}).snapshot("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)

	_, url = (&responseMeta{}).snapshot("https://req", "")
	require.Equal(t, "https://req", url)
}
