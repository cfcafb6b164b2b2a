// Package api hosts the optional status server that runs alongside a scrape.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping of the run registry.
//   - GET /stats for a JSON snapshot of queue progress.
package api
