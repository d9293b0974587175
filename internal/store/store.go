package store

import (
	"context"
	"fmt"
)

// List is the status reference dataset in backend response order.
//
// A List handed out by the store is shared between consumers and must be
// treated as read-only.
type List []Record

// Listener receives the full [List] every time the cache is replaced.
type Listener func(List)

// Fetcher retrieves the status list from the remote backend.
//
// Implementations should return a [*FetchError] for non-2xx responses; any
// other error is wrapped in one by the store.
type Fetcher interface {
	FetchStatuses(ctx context.Context) (List, error)
}

// FetcherFunc adapts a plain function to the [Fetcher] interface.
type FetcherFunc func(ctx context.Context) (List, error)

// FetchStatuses calls f(ctx).
func (f FetcherFunc) FetchStatuses(ctx context.Context) (List, error) {
	return f(ctx)
}

// FetchOptions controls a single [Store.FetchAll] call.
type FetchOptions struct {
	// Force bypasses the cache and always issues a remote fetch.
	Force bool
}

// Store defines the operations consumers use to read and refresh the status cache.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// GetCached returns the cached list without fetching.
	// The boolean is false when nothing has been fetched yet.
	GetCached() (List, bool)

	// FetchAll returns the cached list when it is present and fresh, and
	// otherwise fetches it remotely, replaces the cache and notifies
	// subscribers. On failure the previous cache is left untouched.
	FetchAll(ctx context.Context, opts FetchOptions) (List, error)

	// Subscribe registers a listener for cache replacements and returns a
	// function that removes it. The returned function is idempotent.
	Subscribe(listener Listener) (unsubscribe func())
}

// FetchError reports a failed remote status fetch.
type FetchError struct {
	// URL is the endpoint that was called, if known.
	URL string

	// StatusCode is the HTTP status of a non-2xx response.
	// Zero when the request failed before a response was received.
	StatusCode int

	// Err is the underlying transport or decoding error, if any.
	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.URL != "":
		return fmt.Sprintf("fetch statuses: %s returned HTTP %d", e.URL, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch statuses: HTTP %d", e.StatusCode)
	case e.Err != nil:
		return "fetch statuses: " + e.Err.Error()
	default:
		return "fetch statuses: unknown error"
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
