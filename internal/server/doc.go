// Package server hosts the portodas API behind a single chi router.
//
// Every request passes the same chain: request ID, request logging, metrics,
// panic recovery, security headers, CORS, per-client rate limiting and gzip.
// The api handler groups are mounted under /api/public, /api/admin,
// /api/uploads and /api/auth, next to /healthz and /metrics.
package server
