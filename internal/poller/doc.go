// Package poller talks to the backend service on behalf of the status cache.
//
// The main components are:
//
//   - [Client]: pooled HTTP client with per-request timeouts and size limits
//   - [StatusFetcher]: loads the status list (bare array or enveloped) and
//     implements store.Fetcher
//   - [Refresher]: forces a status refresh on a cron schedule
package poller
