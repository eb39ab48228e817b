// Package fetcher holds the pieces shared by the neighbor fetchers: the Page
// model, link normalization, the JavaScript heuristic used to decide when a
// page needs a browser, and the Registry that picks a fetcher per crawl.
package fetcher
