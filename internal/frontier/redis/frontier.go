// Package redis keeps a crawl frontier in a Redis set outside the crawling
// process. A crawl ID owns its set for the life of the crawl: a second
// crawl that finds its seed already in the set is refused with
// crawler.ErrCrawlIDInUse.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// DefaultPrefix namespaces frontier keys.
const DefaultPrefix = "crawler:frontier"

// Commands is the subset of the go-redis client the frontier uses.
type Commands interface {
	SAdd(ctx context.Context, key string, members ...any) *goredis.IntCmd
	SMembers(ctx context.Context, key string) *goredis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// Config controls key naming and lifetime.
type Config struct {
	Prefix string
	// TTL bounds how long an abandoned frontier survives. Zero disables it.
	TTL time.Duration
	// KeepOnRelease leaves the set in place after the crawl, for inspection.
	// The crawl ID cannot be reused until the set is deleted or expires.
	KeepOnRelease bool
}

// Frontier is a crawler.Frontier over one Redis set. SADD returns 1 only
// for the first writer of a member, which makes admission atomic across
// goroutines and processes.
type Frontier struct {
	client Commands
	key    string
	ttl    time.Duration
	keep   bool
	ttlSet atomic.Bool
}

// New returns the frontier for crawlID.
func New(client Commands, crawlID string, cfg Config) (*Frontier, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if crawlID == "" {
		return nil, errors.New("crawl id is required")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Frontier{
		client: client,
		key:    prefix + ":" + crawlID,
		ttl:    cfg.TTL,
		keep:   cfg.KeepOnRelease,
	}, nil
}

// NewFactory returns a crawler.FrontierFactory that builds one Redis
// frontier per crawl.
func NewFactory(client Commands, cfg Config) crawler.FrontierFactory {
	return func(_ context.Context, crawlID string) (crawler.Frontier, error) {
		return New(client, crawlID, cfg)
	}
}

// Key returns the Redis key backing the frontier.
func (f *Frontier) Key() string {
	return f.key
}

// TryAdmit adds node to the set and reports whether it was new.
func (f *Frontier) TryAdmit(ctx context.Context, node string) (bool, error) {
	added, err := f.client.SAdd(ctx, f.key, node).Result()
	if err != nil {
		return false, fmt.Errorf("redis sadd: %w", err)
	}
	// A failed EXPIRE is retried on the next admission; the member is
	// already stored, so admission itself must not fail.
	if f.ttl > 0 && !f.ttlSet.Load() {
		if f.client.Expire(ctx, f.key, f.ttl).Err() == nil {
			f.ttlSet.Store(true)
		}
	}
	return added == 1, nil
}

// Snapshot returns the members of the set in lexical order.
func (f *Frontier) Snapshot(ctx context.Context) ([]string, error) {
	members, err := f.client.SMembers(ctx, f.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// Release deletes the set unless KeepOnRelease is set.
func (f *Frontier) Release(ctx context.Context) error {
	if f.keep {
		return nil
	}
	if err := f.client.Del(ctx, f.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
