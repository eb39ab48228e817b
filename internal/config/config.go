// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Frontier  FrontierConfig  `mapstructure:"frontier"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// RateLimitConfig throttles API clients, keyed by API key or remote address.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// CrawlerConfig holds the defaults applied to crawl requests.
type CrawlerConfig struct {
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	MaxDepth       int    `mapstructure:"max_depth"`
	MaxURLs        int    `mapstructure:"max_urls"`
	Strategy       string `mapstructure:"strategy"`
	LimitMode      string `mapstructure:"limit_mode"`
	OriginPolicy   string `mapstructure:"origin_policy"`
	// ScenarioLatency is the simulated fetch delay of the built-in graphs.
	ScenarioLatency time.Duration `mapstructure:"scenario_latency"`
}

// JobsConfig sizes the asynchronous job pipeline.
type JobsConfig struct {
	Workers    int    `mapstructure:"workers"`
	QueueDepth int    `mapstructure:"queue_depth"`
	Store      string `mapstructure:"store"`

	// Timeout bounds one queued crawl. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout"`
}

// FetcherConfig configures the live HTTP fetcher.
type FetcherConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int           `mapstructure:"max_body_size"`
	// Detector thresholds decide when a page is re-fetched headless.
	DetectorMinHTMLBytes int      `mapstructure:"detector_min_html_bytes"`
	DetectorSelectors    []string `mapstructure:"detector_selectors"`
	DetectorKeywords     []string `mapstructure:"detector_keywords"`
}

// HeadlessConfig configures the headless rendering fallback.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// FrontierConfig selects the frontier backend.
type FrontierConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
	KeepOnRelease bool          `mapstructure:"keep_on_release"`
}

// StorageConfig selects where exported results are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DatabaseConfig controls the Postgres result and job stores.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	JobsTable       string        `mapstructure:"jobs_table"`
	ResultsTable    string        `mapstructure:"results_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// PubSubConfig holds completion notice settings.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchMaxItems int           `mapstructure:"batch_max_items"`
	BatchMaxWait  time.Duration `mapstructure:"batch_max_wait"`
	SinkTimeout   time.Duration `mapstructure:"sink_timeout"`
	LogEvents     bool          `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from defaults, an optional file and CRAWLER_* env vars.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("crawler.max_concurrency", 10)
	v.SetDefault("crawler.max_depth", 0)
	v.SetDefault("crawler.max_urls", 0)
	v.SetDefault("crawler.strategy", string(crawler.StrategyPool))
	v.SetDefault("crawler.limit_mode", string(crawler.LimitStrict))
	v.SetDefault("crawler.origin_policy", string(crawler.DefaultOriginPolicy))
	v.SetDefault("crawler.scenario_latency", 15*time.Millisecond)
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_depth", 64)
	v.SetDefault("jobs.store", "memory")
	v.SetDefault("jobs.timeout", 10*time.Minute)
	v.SetDefault("fetcher.enabled", true)
	v.SetDefault("fetcher.user_agent", "origin-crawler/0.1")
	v.SetDefault("fetcher.timeout", 15*time.Second)
	v.SetDefault("fetcher.max_body_size", 10<<20)
	v.SetDefault("fetcher.detector_min_html_bytes", 512)
	v.SetDefault("fetcher.detector_keywords", []string{"__NEXT_DATA__", "ng-app", "data-reactroot"})
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", 25*time.Second)
	v.SetDefault("headless.settle_delay", 500*time.Millisecond)
	v.SetDefault("frontier.backend", "memory")
	v.SetDefault("frontier.redis_addr", "localhost:6379")
	v.SetDefault("frontier.key_prefix", "crawler:frontier")
	v.SetDefault("frontier.ttl", time.Hour)
	v.SetDefault("frontier.keep_on_release", false)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "crawls")
	v.SetDefault("database.jobs_table", "crawl_jobs")
	v.SetDefault("database.results_table", "crawl_results")
	v.SetDefault("database.ensure_schema", true)
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.batch_max_items", 500)
	v.SetDefault("progress.batch_max_wait", 250*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 5*time.Second)
	v.SetDefault("progress.log_events", false)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch {
	case c.Server.Port <= 0:
		return fmt.Errorf("server.port must be > 0")
	case c.Crawler.MaxConcurrency <= 0:
		return fmt.Errorf("crawler.max_concurrency must be > 0")
	case c.Crawler.MaxDepth < 0:
		return fmt.Errorf("crawler.max_depth must be >= 0")
	case c.Crawler.MaxURLs < 0:
		return fmt.Errorf("crawler.max_urls must be >= 0")
	case !crawler.Strategy(c.Crawler.Strategy).Valid():
		return fmt.Errorf("crawler.strategy %q is not supported", c.Crawler.Strategy)
	case !crawler.LimitMode(c.Crawler.LimitMode).Valid():
		return fmt.Errorf("crawler.limit_mode %q is not supported", c.Crawler.LimitMode)
	case !crawler.OriginPolicy(c.Crawler.OriginPolicy).Valid():
		return fmt.Errorf("crawler.origin_policy %q is not supported", c.Crawler.OriginPolicy)
	case c.Jobs.Workers <= 0:
		return fmt.Errorf("jobs.workers must be > 0")
	case c.Jobs.QueueDepth <= 0:
		return fmt.Errorf("jobs.queue_depth must be > 0")
	case c.Jobs.Store != "memory" && c.Jobs.Store != "postgres":
		return fmt.Errorf("jobs.store must be memory or postgres")
	case c.Jobs.Store == "postgres" && !c.Database.Enabled:
		return fmt.Errorf("jobs.store postgres requires database.enabled")
	case c.Fetcher.Enabled && c.Fetcher.Timeout <= 0:
		return fmt.Errorf("fetcher.timeout must be > 0")
	case c.Headless.Enabled && c.Headless.MaxParallel <= 0:
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	case c.Auth.Enabled && c.Auth.APIKey == "":
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	case c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0):
		return fmt.Errorf("rate_limit.requests_per_second and rate_limit.burst must be > 0")
	case c.Database.Enabled && c.Database.DSN == "":
		return fmt.Errorf("database.dsn is required when database is enabled")
	case c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == ""):
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
	}
	switch c.Frontier.Backend {
	case "memory":
	case "redis":
		if c.Frontier.RedisAddr == "" {
			return fmt.Errorf("frontier.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("frontier.backend %q is not supported", c.Frontier.Backend)
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	return nil
}

// DefaultRequest applies the crawler defaults to a request for seed.
// Zero limits mean unbounded.
func (c CrawlerConfig) DefaultRequest(seed string) crawler.Request {
	req := crawler.Request{
		Seed:           seed,
		MaxConcurrency: c.MaxConcurrency,
		Strategy:       crawler.Strategy(c.Strategy),
		LimitMode:      crawler.LimitMode(c.LimitMode),
		OriginPolicy:   crawler.OriginPolicy(c.OriginPolicy),
	}
	if c.MaxDepth > 0 {
		req.MaxDepth = crawler.Bound(c.MaxDepth)
	}
	if c.MaxURLs > 0 {
		req.MaxURLs = crawler.Bound(c.MaxURLs)
	}
	return req
}
