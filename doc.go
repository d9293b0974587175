// Package fundboard provides the admin companion service of a research-fund
// management system.
//
// A [Fundboard] keeps one process-wide cache of the status reference dataset
// (id, code and display name of each workflow state) fetched from the
// backend, and shares it with every consumer: the REST API, per-client SSE
// streams and the dashboard page. It also proxies PDF uploads from the admin
// UI to the backend after validating them locally.
//
// # Quick Start
//
//	route, _ := fundboard.NewUploadRoute("fund-form", "/api/upload",
//	    "https://backend.example.edu/api/fund-forms/upload")
//
//	fb, _ := fundboard.New(
//	    fundboard.WithStatusURL("https://backend.example.edu/api/statuses"),
//	    fundboard.WithUploadRoute(route),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	fb.Start(ctx) // blocks until context is cancelled
//
// # Status cache
//
// The cache is filled on first use and then served from memory. Concurrent
// first requests share a single backend call, forced refreshes never let an
// older response overwrite a newer one, and a cron schedule
// ([WithRefreshSchedule]) forces a refresh in the background. Every cache
// replacement is pushed to connected SSE clients.
//
// # Upload routes
//
// Each [UploadRoute] accepts multipart/form-data POSTs with a "file" part.
// Missing files (400), non-PDF files (415) and files over the size limit
// (413) are rejected without contacting the backend. Accepted requests are
// forwarded byte for byte, with their Content-Type and Authorization
// headers, and the backend's response is relayed unchanged.
// [NewUploadRouteSet] generates families of similar routes from templates.
//
// # Architecture
//
// Internal packages (under internal/):
//
//   - store: status cache, index maps, subscriptions
//   - binding: per-consumer view with loading and error state
//   - poller: backend HTTP client, status fetcher, cron refresher
//   - upload: validation and forwarding proxy
//   - activity: recent upload feed
//   - middleware: correlation id, logging, recovery, CORS
//   - server: HTTP routes and graceful shutdown
package fundboard
