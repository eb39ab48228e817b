package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedNode marks node identifiers that are not absolute locators.
	ErrMalformedNode = errors.New("malformed node")
	// ErrInvalidSeed is returned when the crawl seed fails the origin filter.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrInvalidRequest is returned for crawl requests with out-of-range limits.
	ErrInvalidRequest = errors.New("invalid crawl request")
	// ErrJobNotFound is returned by job and result stores for unknown IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned by a Queue that no longer delivers items.
	ErrQueueClosed = errors.New("queue closed")
	// ErrCrawlIDInUse is returned when the frontier for a crawl ID already
	// holds the seed, so another crawl owns it.
	ErrCrawlIDInUse = errors.New("crawl id in use")
)

// MalformedNodeError reports a node identifier the origin filter rejected.
type MalformedNodeError struct {
	Node string
	Err  error
}

func (e *MalformedNodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed node %q", e.Node)
	}
	return fmt.Sprintf("malformed node %q: %v", e.Node, e.Err)
}

func (e *MalformedNodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrMalformedNode) match any MalformedNodeError.
func (e *MalformedNodeError) Is(target error) bool {
	return target == ErrMalformedNode
}

// InvalidSeedError is returned by Crawl before any work is scheduled.
type InvalidSeedError struct {
	Seed string
	Err  error
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed %q: %v", e.Seed, e.Err)
}

func (e *InvalidSeedError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrInvalidSeed) match any InvalidSeedError.
func (e *InvalidSeedError) Is(target error) bool {
	return target == ErrInvalidSeed
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
