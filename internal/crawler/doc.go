// Package crawler implements the same-origin graph crawl: origin filtering,
// the admission frontier, the fetch limiter, the outstanding-work supervisor,
// and the orchestrator that ties them together. It also defines the shared
// interfaces and job types used by the surrounding service.
package crawler
