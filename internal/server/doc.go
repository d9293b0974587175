// Package server provides the HTTP server for the fundboard admin service.
//
// It serves:
//
//   - GET /api/statuses: the cached status list, ?force=true refetches it
//   - GET /api/statuses/{id}: a single status record
//   - GET /api/sse: Server-Sent Events carrying the status binding state
//   - POST <path>: each configured upload proxy route
//   - GET /: the admin dashboard page
//   - GET /health: liveness probe
//
// Every request passes through the CORS, recovery, logging and correlation id
// middleware. The server shuts down gracefully when its context is cancelled,
// allowing 5 seconds for in-flight requests.
package server
