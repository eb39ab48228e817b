package fetcher

import (
	"errors"
	"time"

	"github.com/JakeFAU/origin-crawler/internal/crawler"
	"github.com/JakeFAU/origin-crawler/internal/fetcher/graph"
)

// ErrNoLiveFetcher is returned when a crawl asks for live pages but the
// service was started without an HTTP fetcher.
var ErrNoLiveFetcher = errors.New("live fetcher not configured")

// Registry picks the Fetcher for a crawl: a named graph scenario when one
// is requested, the live fetcher otherwise.
type Registry struct {
	live            crawler.Fetcher
	scenarioLatency time.Duration
}

// NewRegistry builds a Registry. live may be nil.
func NewRegistry(live crawler.Fetcher, scenarioLatency time.Duration) *Registry {
	return &Registry{live: live, scenarioLatency: scenarioLatency}
}

// Resolve returns the fetcher for scenario. Unknown names fail with
// graph.ErrUnknownScenario.
func (r *Registry) Resolve(scenario string) (crawler.Fetcher, error) {
	if scenario != "" {
		f, err := graph.Scenario(scenario, r.scenarioLatency)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	if r.live == nil {
		return nil, ErrNoLiveFetcher
	}
	return r.live, nil
}
