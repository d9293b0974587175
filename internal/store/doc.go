// Package store provides the process-wide cache of the status reference dataset.
//
// The status dataset is a small list of workflow states (id, code, display
// name) used by every admin form and table. This package fetches it once,
// keeps it in memory, and fans out every replacement to registered listeners.
//
// The main components are:
//
//   - [Record] and [List]: the status reference data as returned by the backend
//   - [BuildMaps]: derives the by-id and by-code indices from a [List]
//   - [Store]: interface for reading, fetching and subscribing to the cache
//   - [StatusStore]: the in-memory implementation of [Store]
//   - [FetchError]: the error kind returned when the remote fetch fails
//
// [StatusStore] is safe for concurrent use. Concurrent first-time callers share
// one in-flight fetch, and a monotonic sequence guard keeps a slow response
// from overwriting a newer one. Listeners are called synchronously, in
// registration order, after the cache has been replaced.
package store
