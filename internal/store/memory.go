package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultFetchTimeout = 10 * time.Second

// StatusStore is the in-memory implementation of [Store].
//
// StatusStore holds a single cached [List] plus the listeners registered via
// [StatusStore.Subscribe]. It is constructed once at process start and passed
// to every consumer that needs status data.
//
// Non-forced callers that find no fresh cache share the pending fetch, so
// concurrent first consumers produce one remote call. Every remote fetch is
// tagged with an increasing sequence number and only applied if it is newer
// than the last applied one.
//
// Listeners run synchronously on the goroutine that completed the fetch, one
// notification round at a time. A listener must not issue a forced
// [StatusStore.FetchAll] synchronously, since that would wait on its own round.
type StatusStore struct {
	fetcher      Fetcher
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu         sync.Mutex
	list       List
	cached     bool
	stale      bool
	fetchedAt  time.Time
	inflight   *fetchCall
	nextSeq    uint64
	appliedSeq uint64

	subMu sync.Mutex
	subs  []*subscription

	// notifyMu serializes cache replacement together with its fan-out.
	notifyMu sync.Mutex

	fetches atomic.Int64
}

type subscription struct {
	listener Listener
	active   atomic.Bool
}

type fetchCall struct {
	done chan struct{}
	list List
	err  error
}

// Option configures a [StatusStore].
type Option func(*StatusStore)

// WithTTL sets how long a fetched list stays fresh. After the TTL elapses the
// next non-forced [StatusStore.FetchAll] refetches. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *StatusStore) {
		s.ttl = ttl
	}
}

// WithFetchTimeout bounds each remote fetch. Defaults to 10 seconds.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *StatusStore) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger used for fetch and listener events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *StatusStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(s *StatusStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStatusStore creates an empty [StatusStore] backed by fetcher.
func NewStatusStore(fetcher Fetcher, opts ...Option) *StatusStore {
	s := &StatusStore{
		fetcher:      fetcher,
		fetchTimeout: defaultFetchTimeout,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCached returns the cached list, or false if nothing has been fetched.
//
// A list that has expired or been invalidated is still returned; only
// [StatusStore.FetchAll] acts on freshness.
func (s *StatusStore) GetCached() (List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list, s.cached
}

// FetchAll returns the cached list if it is fresh and opts.Force is unset.
// Otherwise it fetches remotely, replaces the cache, notifies subscribers, and
// then returns.
//
// Failures are returned as [*FetchError] and leave the cache untouched. If the
// caller's context ends first, FetchAll stops waiting and returns the context
// error; the shared fetch keeps running for the other callers.
func (s *StatusStore) FetchAll(ctx context.Context, opts FetchOptions) (List, error) {
	s.mu.Lock()
	if !opts.Force {
		if s.cached && s.freshLocked() {
			list := s.list
			s.mu.Unlock()
			return list, nil
		}
		if call := s.inflight; call != nil {
			s.mu.Unlock()
			return s.wait(ctx, call)
		}
	}

	call := &fetchCall{done: make(chan struct{})}
	s.nextSeq++
	seq := s.nextSeq
	s.inflight = call
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), call, seq)
	return s.wait(ctx, call)
}

// Invalidate marks the cache stale so the next non-forced fetch goes remote.
func (s *StatusStore) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Subscribe registers listener and returns its unsubscribe function.
//
// Listeners are notified in registration order. The unsubscribe function is
// safe to call multiple times and from within a listener.
func (s *StatusStore) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	sub := &subscription{listener: listener}
	sub.active.Store(true)

	s.subMu.Lock()
	s.subs = append(s.subs, sub)
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, existing := range s.subs {
				if existing == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscriberCount returns the number of registered listeners.
func (s *StatusStore) SubscriberCount() int {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs)
}

// RemoteFetches returns how many remote fetches the store has issued.
func (s *StatusStore) RemoteFetches() int64 {
	return s.fetches.Load()
}

// LastFetched returns when the cache was last replaced, or the zero time.
func (s *StatusStore) LastFetched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchedAt
}

func (s *StatusStore) freshLocked() bool {
	if s.stale {
		return false
	}
	if s.ttl <= 0 {
		return true
	}
	return s.now().Sub(s.fetchedAt) < s.ttl
}

func (s *StatusStore) wait(ctx context.Context, call *fetchCall) (List, error) {
	select {
	case <-call.done:
		return call.list, call.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for status fetch: %w", ctx.Err())
	}
}

// run performs one remote fetch and settles call.
func (s *StatusStore) run(ctx context.Context, call *fetchCall, seq uint64) {
	defer close(call.done)

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	s.fetches.Add(1)
	start := time.Now()
	list, err := s.fetcher.FetchStatuses(ctx)
	if err != nil {
		call.err = asFetchError(err)
		s.mu.Lock()
		if s.inflight == call {
			s.inflight = nil
		}
		s.mu.Unlock()
		s.logger.Warn("status fetch failed",
			"seq", seq,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", call.err.Error(),
		)
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.inflight == call {
		s.inflight = nil
	}
	if seq <= s.appliedSeq {
		// a newer response already won the cache slot
		call.list = s.list
		s.mu.Unlock()
		s.logger.Debug("discarding stale status response", "seq", seq, "applied_seq", s.appliedSeq)
		return
	}
	s.list = list
	s.cached = true
	s.stale = false
	s.fetchedAt = s.now()
	s.appliedSeq = seq
	call.list = list
	s.mu.Unlock()

	s.logger.Debug("status cache replaced",
		"seq", seq,
		"count", len(list),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.notify(list)
}

// notify delivers list to every active listener in registration order.
func (s *StatusStore) notify(list List) {
	s.subMu.Lock()
	subs := make([]*subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		if !sub.active.Load() {
			continue
		}
		s.invokeListenerSafe(sub.listener, list)
	}
}

// invokeListenerSafe calls a listener with panic recovery.
func (s *StatusStore) invokeListenerSafe(l Listener, list List) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("status listener panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	l(list)
}

func asFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Err: err}
}
