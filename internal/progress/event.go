package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageFetchDone  Stage = "FETCH_DONE"
	StageFetchError Stage = "FETCH_ERROR"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
)

// Event is one crawl milestone.
type Event struct {
	// CrawlID identifies the crawl run.
	CrawlID string
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Origin is the crawl's origin key; used as a low-cardinality label.
	Origin string
	// Node is the fetched node for fetch stages and the seed otherwise.
	Node  string
	Depth int
	// Neighbors counts the identifiers a fetch returned.
	Neighbors int
	// Nodes is the final frontier size on CRAWL_DONE and CRAWL_ERROR.
	Nodes int
	// Dur is the fetch latency or, for crawl stages, the crawl wall time.
	Dur time.Duration
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == "" {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError:
	case StageFetchDone, StageFetchError:
		if e.Node == "" {
			return fmt.Errorf("%s requires node", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Finished reports whether the event closes a crawl.
func (e Event) Finished() bool {
	return e.Stage == StageCrawlDone || e.Stage == StageCrawlError
}
