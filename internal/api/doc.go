// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET / renders the record list with every post pre-rendered.
//   - /api/records for record CRUD and per-record rendering.
//   - /api/render for list re-renders and the latest render status per record.
//   - /api/download/video, /api/twitterapi/tweet and /api/config for the
//     upstream integrations.
//   - /api/twscrape/... for the scraper's account pool.
//   - GET /healthz, /readyz and /metrics for health checks and Prometheus scraping.
//
// Every /api response uses the {success, data, error} envelope.
package api
