package fetcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Adaptive fetches with a plain HTTP PageFetcher and re-fetches through a
// browser when the Detector says the page relies on JavaScript. It satisfies
// crawler.Fetcher.
type Adaptive struct {
	primary  PageFetcher
	renderer PageFetcher
	detector Detector
	logger   *zap.Logger
}

// NewAdaptive builds an Adaptive fetcher. A nil renderer or detector
// disables the browser fallback.
func NewAdaptive(primary, renderer PageFetcher, detector Detector, logger *zap.Logger) *Adaptive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adaptive{primary: primary, renderer: renderer, detector: detector, logger: logger}
}

// FetchNeighbors returns the links of node.
func (a *Adaptive) FetchNeighbors(ctx context.Context, node string) ([]string, error) {
	page, err := a.primary.FetchPage(ctx, node)
	if err != nil {
		return nil, err
	}
	if a.renderer == nil || a.detector == nil || !a.detector.NeedsJS(page) {
		return page.Links, nil
	}
	a.logger.Debug("page needs javascript, rendering", zap.String("node", node))
	rendered, err := a.renderer.FetchPage(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", node, err)
	}
	return rendered.Links, nil
}
