// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - POST /api/v1/crawler/crawl and /api/v1/crawler/benchmark run a crawl
//     inside the request.
//   - POST /v1/crawls submits an asynchronous crawl job and
//     GET /v1/crawls/{job_id} reports it.
package api
