// Package binding ties one consumer's lifecycle to the shared status store.
//
// A [Binding] is created with [Activate] when a consumer (a dashboard page,
// an SSE client, a CLI command) starts, and released with
// [Binding.Deactivate] when it goes away. While active it mirrors the store's
// cached list, keeps by-id and by-code indices derived from it, and reports
// loading and error state.
package binding

import (
	"context"
	"log/slog"
	"sync"

	"github.com/researchfund/fundboard/internal/store"
)

// Source is the subset of [store.Store] a binding depends on.
type Source interface {
	GetCached() (store.List, bool)
	FetchAll(ctx context.Context, opts store.FetchOptions) (store.List, error)
	Subscribe(listener store.Listener) (unsubscribe func())
}

// State is a snapshot of a binding.
//
// ByID and ByName are always derived from Statuses and must be treated as
// read-only.
type State struct {
	Statuses  store.List
	ByID      map[int64]store.Record
	ByName    map[string]store.Record
	IsLoading bool
	Err       error
}

// Binding is a per-consumer view of the status store.
type Binding struct {
	src      Source
	logger   *slog.Logger
	onChange func(State)

	mu          sync.Mutex
	state       State
	alive       bool
	unsubscribe func()
}

// BindingOption configures a [Binding].
type BindingOption func(*Binding)

// WithOnChange registers a callback invoked with the new state after every
// transition. It runs outside the binding's lock and must not block.
func WithOnChange(fn func(State)) BindingOption {
	return func(b *Binding) {
		b.onChange = fn
	}
}

// WithLogger sets the binding's logger.
func WithLogger(logger *slog.Logger) BindingOption {
	return func(b *Binding) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Activate binds a new consumer to src.
//
// If src already holds a cached list the binding starts populated and never
// reports loading. Otherwise it starts loading and triggers an initial fetch
// in the background; ctx bounds that fetch.
func Activate(ctx context.Context, src Source, opts ...BindingOption) *Binding {
	b := &Binding{
		src:    src,
		logger: slog.Default(),
		alive:  true,
	}
	for _, opt := range opts {
		opt(b)
	}

	// subscribe before reading the cache so no replacement is missed
	b.unsubscribe = src.Subscribe(b.handleNotify)

	b.mu.Lock()
	if b.state.Statuses == nil {
		if list, ok := src.GetCached(); ok {
			b.state = populated(list)
		} else {
			b.state = State{
				ByID:      map[int64]store.Record{},
				ByName:    map[string]store.Record{},
				IsLoading: true,
			}
		}
	}
	needFetch := b.state.IsLoading
	b.mu.Unlock()

	if needFetch {
		go b.initialFetch(ctx)
	}
	return b
}

// Deactivate removes the binding's subscription. Fetches already in flight
// may finish but no longer change the binding's state. Safe to call twice.
func (b *Binding) Deactivate() {
	b.mu.Lock()
	if !b.alive {
		b.mu.Unlock()
		return
	}
	b.alive = false
	unsubscribe := b.unsubscribe
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// State returns the current snapshot.
func (b *Binding) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Refetch forces a remote fetch and applies the result directly.
//
// On failure the previous statuses are kept, the error is recorded in the
// state, loading is cleared, and the error is returned.
func (b *Binding) Refetch(ctx context.Context) (store.List, error) {
	b.update(func(s *State) bool {
		if s.IsLoading {
			return false
		}
		s.IsLoading = true
		return true
	})

	list, err := b.src.FetchAll(ctx, store.FetchOptions{Force: true})
	if err != nil {
		b.logger.Warn("status refetch failed", "error", err)
		b.fail(err)
		return nil, err
	}
	b.apply(list)
	return list, nil
}

// LabelByID returns the display name of the status with the given id.
// id may be any integer kind, an integral float, or a decimal string.
func (b *Binding) LabelByID(id any) (string, bool) {
	rec, ok := b.recordByID(id)
	if !ok {
		return "", false
	}
	return rec.Name, true
}

// CodeByID returns the code of the status with the given id.
func (b *Binding) CodeByID(id any) (string, bool) {
	rec, ok := b.recordByID(id)
	if !ok {
		return "", false
	}
	return rec.Code, true
}

// RecordByID returns the full record for id.
func (b *Binding) RecordByID(id any) (store.Record, bool) {
	return b.recordByID(id)
}

// ByName looks up a status by its exact code. The empty string finds nothing.
func (b *Binding) ByName(name string) (store.Record, bool) {
	if name == "" {
		return store.Record{}, false
	}
	b.mu.Lock()
	rec, ok := b.state.ByName[name]
	b.mu.Unlock()
	return rec, ok
}

func (b *Binding) recordByID(id any) (store.Record, bool) {
	n, ok := store.NormalizeID(id)
	if !ok {
		return store.Record{}, false
	}
	b.mu.Lock()
	rec, ok := b.state.ByID[n]
	b.mu.Unlock()
	return rec, ok
}

func (b *Binding) initialFetch(ctx context.Context) {
	list, err := b.src.FetchAll(ctx, store.FetchOptions{})
	if err != nil {
		b.logger.Warn("initial status fetch failed", "error", err)
		b.fail(err)
		return
	}
	// usually already applied by the subscription; covers a cache that was
	// filled between Subscribe and GetCached without a notification
	b.update(func(s *State) bool {
		if !s.IsLoading {
			return false
		}
		*s = populated(list)
		return true
	})
}

func (b *Binding) handleNotify(list store.List) {
	b.apply(list)
}

func (b *Binding) apply(list store.List) {
	b.update(func(s *State) bool {
		*s = populated(list)
		return true
	})
}

func (b *Binding) fail(err error) {
	b.update(func(s *State) bool {
		s.IsLoading = false
		s.Err = err
		return true
	})
}

// update mutates the state under the lock if the binding is still alive and
// fires onChange when fn reports a change.
func (b *Binding) update(fn func(*State) bool) {
	b.mu.Lock()
	if !b.alive {
		b.mu.Unlock()
		return
	}
	changed := fn(&b.state)
	snapshot := b.state
	b.mu.Unlock()

	if changed && b.onChange != nil {
		b.onChange(snapshot)
	}
}

func populated(list store.List) State {
	if list == nil {
		list = store.List{}
	}
	maps := store.BuildMaps(list)
	return State{
		Statuses: list,
		ByID:     maps.ByID,
		ByName:   maps.ByName,
	}
}
