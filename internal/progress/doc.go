// Package progress carries crawl progress events from the crawler to
// pluggable sinks. The Hub buffers events without blocking the crawl and
// flushes them in batches on a background goroutine.
package progress
