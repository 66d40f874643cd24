// Package main hosts the catalog service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, ranked movie search, single-title lookup,
//     invoice creation, and the admin crawl endpoints. Admin routes can be gated behind an API key.
//   - Ingestion: internal/crawler.Coordinator walks a configured range of local sitemap files, filters
//     candidate URLs to movie detail pages, fetches each page through the Colly-based fetcher with a
//     browser User-Agent and per-page Referer, extracts fields with goquery, and upserts records into
//     Postgres. A fixed, context-aware delay paces consecutive fetches.
//   - Resumability: the crawl checkpoints a cursor (last_processed_index) after every stored record and
//     guards against concurrent runs with an atomically claimed is_running flag, both in the
//     crawl_progress table. POST /api/admin/crawl resumes from the checkpoint unless the request body
//     carries an explicit resume_from.
//   - Persistence: pgx/pgxpool against Postgres; inserts are ON CONFLICT DO NOTHING keyed by the
//     site-internal movie id, so re-crawls never clobber existing rows.
//   - Configuration & plumbing: Viper populates config from env (CATALOG_ prefix) and an optional YAML
//     file; zap provides structured logging with an optional size-rotated file sink; Prometheus
//     counters/histograms are exported on /metrics.
//
// Run locally: go run ./cmd/catalog -config config.yaml (or rely solely on env overrides). The process
// reacts to SIGINT/SIGTERM with a graceful HTTP drain; an in-flight crawl keeps running until it is
// canceled through its handle or the process exits.
package main
