package fetcher

import (
	"context"
	"time"
)

// Page is one fetched document and the links found in it.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Links      []string
	Duration   time.Duration
	Rendered   bool
}

// PageFetcher retrieves a page and extracts its outgoing links.
type PageFetcher interface {
	FetchPage(ctx context.Context, node string) (Page, error)
}
