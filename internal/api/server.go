package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/origin-crawler/internal/config"
	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/dispatcher"
	"github.com/JakeFAU/origin-crawler/internal/fetcher"
	"github.com/JakeFAU/origin-crawler/internal/fetcher/graph"
	"github.com/JakeFAU/origin-crawler/internal/metrics"
	"github.com/JakeFAU/origin-crawler/internal/policy/ratelimit"
	queuememory "github.com/JakeFAU/origin-crawler/internal/queue/memory"
)

// FetcherResolver picks the Fetcher for a scenario name; "" means live pages.
type FetcherResolver interface {
	Resolve(scenario string) (crawler.Fetcher, error)
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// Deps groups the collaborators of a Server. Ready is optional.
type Deps struct {
	Jobs       crawler.JobStore
	Dispatcher *dispatcher.Dispatcher
	Fetchers   FetcherResolver
	Crawler    *crawler.Crawler
	IDs        crawler.IDGenerator
	Clock      crawler.Clock
	Ready      ReadyFunc
}

// Server wires HTTP handlers to the crawler, dispatcher and stores.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    config.Config
	logger *zap.Logger
}

const enqueueTimeout = 5 * time.Second

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Crawler == nil {
		deps.Crawler = crawler.New(crawler.WithLogger(logger))
	}
	metrics.Init()
	s := &Server{deps: deps, cfg: cfg, logger: logger}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		if cfg.RateLimit.Enabled {
			limiter := ratelimit.New(ratelimit.Config{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				Burst:             cfg.RateLimit.Burst,
			})
			r.Use(limiter.Middleware)
		}

		r.Route("/api/v1/crawler", func(r chi.Router) {
			r.Post("/crawl", s.crawl)
			r.Post("/benchmark", s.benchmark)
		})
		r.Route("/v1/crawls", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Get("/{job_id}", s.getJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready: "+err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, crawler.ErrInvalidSeed),
		errors.Is(err, crawler.ErrInvalidRequest),
		errors.Is(err, crawler.ErrMalformedNode),
		errors.Is(err, fetcher.ErrNoLiveFetcher):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrUnknownScenario),
		errors.Is(err, crawler.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, crawler.ErrCrawlIDInUse):
		return http.StatusConflict
	case errors.Is(err, queuememory.ErrQueueFull),
		errors.Is(err, crawler.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
