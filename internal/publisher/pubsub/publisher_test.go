package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

func TestPublishNotice(t *testing.T) {
	t.Parallel()

	var gotTopic string
	var gotMsg *pubsub.Message
	p := New(nil)
	p.send = func(_ context.Context, topic string, msg *pubsub.Message) (string, error) {
		gotTopic, gotMsg = topic, msg
		return "srv-1", nil
	}

	id, err := p.Publish(context.Background(), "crawls", crawler.CompletionNotice{JobID: "j1", TotalNodes: 4})
	require.NoError(t, err)
	require.Equal(t, "srv-1", id)
	require.Equal(t, "crawls", gotTopic)
	require.Equal(t, "j1", gotMsg.Attributes["job_id"])
	require.Equal(t, "crawl.completed", gotMsg.Attributes["event"])

	var decoded crawler.CompletionNotice
	require.NoError(t, json.Unmarshal(gotMsg.Data, &decoded))
	require.Equal(t, 4, decoded.TotalNodes)
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	p := New(nil)
	_, err := p.Publish(context.Background(), "", "x")
	require.Error(t, err)

	_, err = p.Publish(context.Background(), "t", func() {})
	require.ErrorContains(t, err, "marshal payload")

	_, err = p.Publish(context.Background(), "t", "x")
	require.ErrorContains(t, err, "client is not configured")

	boom := errors.New("boom")
	p.send = func(context.Context, string, *pubsub.Message) (string, error) { return "", boom }
	_, err = p.Publish(context.Background(), "t", "x")
	require.ErrorIs(t, err, boom)

	require.NoError(t, p.Close())
}
