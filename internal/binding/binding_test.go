package binding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/researchfund/fundboard/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleList() store.List {
	return store.List{
		{ID: 1, Code: "OPEN", Name: "เปิด"},
		{ID: 2, Code: "CLOSED", Name: "ปิด"},
	}
}

// scriptedFetcher returns results from a queue and can be gated.
type scriptedFetcher struct {
	mu      sync.Mutex
	calls   int
	results []error
	list    store.List
	gate    chan struct{}
}

func (f *scriptedFetcher) FetchStatuses(ctx context.Context) (store.List, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	var err error
	if idx < len(f.results) {
		err = f.results[idx]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return f.list, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder collects states passed to the onChange callback.
type recorder struct {
	mu     sync.Mutex
	states []State
	ch     chan State
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan State, 32)}
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *recorder) next(t *testing.T) State {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state change")
		return State{}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func newStore(f store.Fetcher) *store.StatusStore {
	return store.NewStatusStore(f, store.WithLogger(testLogger()))
}

func TestActivate_WithCacheNeverLoading(t *testing.T) {
	f := &scriptedFetcher{list: sampleList()}
	s := newStore(f)
	if _, err := s.FetchAll(context.Background(), store.FetchOptions{}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	rec := newRecorder()
	b := Activate(context.Background(), s, WithOnChange(rec.record), WithLogger(testLogger()))
	defer b.Deactivate()

	st := b.State()
	if st.IsLoading {
		t.Error("IsLoading = true with cached data")
	}
	if len(st.Statuses) != 2 || len(st.ByID) != 2 || len(st.ByName) != 2 {
		t.Errorf("State() = %+v, want populated", st)
	}

	// no background fetch and no transition
	time.Sleep(20 * time.Millisecond)
	if n := f.callCount(); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}
	if n := rec.count(); n != 0 {
		t.Errorf("state changes = %d, want 0", n)
	}
}

func TestActivate_WithoutCacheLoadsOnce(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), gate: make(chan struct{})}
	s := newStore(f)

	rec := newRecorder()
	b := Activate(context.Background(), s, WithOnChange(rec.record), WithLogger(testLogger()))
	defer b.Deactivate()

	st := b.State()
	if !st.IsLoading {
		t.Fatal("IsLoading = false before first fetch completes")
	}
	if st.Statuses != nil {
		t.Errorf("Statuses = %v, want nil while loading", st.Statuses)
	}

	close(f.gate)

	got := rec.next(t)
	if got.IsLoading || got.Err != nil {
		t.Errorf("state after load = %+v, want populated without error", got)
	}
	if len(got.Statuses) != 2 {
		t.Errorf("len(Statuses) = %d, want 2", len(got.Statuses))
	}

	// exactly one transition
	time.Sleep(20 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("state changes = %d, want 1", n)
	}
}

func TestActivate_InitialFetchFailure(t *testing.T) {
	f := &scriptedFetcher{results: []error{errors.New("backend down")}}
	s := newStore(f)

	rec := newRecorder()
	b := Activate(context.Background(), s, WithOnChange(rec.record), WithLogger(testLogger()))
	defer b.Deactivate()

	got := rec.next(t)
	if got.IsLoading {
		t.Error("IsLoading = true after failure")
	}
	var fe *store.FetchError
	if !errors.As(got.Err, &fe) {
		t.Errorf("Err = %v, want *store.FetchError", got.Err)
	}
	if _, ok := s.GetCached(); ok {
		t.Error("store cache populated after failed fetch")
	}
}

func TestActivate_ConcurrentConsumersShareOneFetch(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), gate: make(chan struct{})}
	s := newStore(f)

	const consumers = 5
	recs := make([]*recorder, consumers)
	bindings := make([]*Binding, consumers)
	for i := range bindings {
		recs[i] = newRecorder()
		bindings[i] = Activate(context.Background(), s, WithOnChange(recs[i].record), WithLogger(testLogger()))
	}
	defer func() {
		for _, b := range bindings {
			b.Deactivate()
		}
	}()

	time.Sleep(50 * time.Millisecond)
	close(f.gate)

	for i, r := range recs {
		st := r.next(t)
		if st.IsLoading || len(st.Statuses) != 2 {
			t.Errorf("consumer %d state = %+v, want populated", i, st)
		}
	}
	if n := f.callCount(); n != 1 {
		t.Errorf("remote calls = %d, want 1", n)
	}
}

func TestBinding_Accessors(t *testing.T) {
	s := newStore(&scriptedFetcher{list: sampleList()})
	if _, err := s.FetchAll(context.Background(), store.FetchOptions{}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	b := Activate(context.Background(), s, WithLogger(testLogger()))
	defer b.Deactivate()

	if got, ok := b.LabelByID(1); !ok || got != "เปิด" {
		t.Errorf("LabelByID(1) = %q, %v; want %q", got, ok, "เปิด")
	}
	if got, ok := b.CodeByID(2); !ok || got != "CLOSED" {
		t.Errorf("CodeByID(2) = %q, %v; want %q", got, ok, "CLOSED")
	}
	if got, ok := b.ByName("OPEN"); !ok || got.ID != 1 {
		t.Errorf("ByName(OPEN) = %+v, %v; want id 1", got, ok)
	}

	// ids are normalized before lookup
	if got, ok := b.LabelByID("2"); !ok || got != "ปิด" {
		t.Errorf(`LabelByID("2") = %q, %v; want %q`, got, ok, "ปิด")
	}
	if got, ok := b.CodeByID(1.0); !ok || got != "OPEN" {
		t.Errorf("CodeByID(1.0) = %q, %v; want OPEN", got, ok)
	}
	if rec, ok := b.RecordByID(int64(2)); !ok || rec.Code != "CLOSED" {
		t.Errorf("RecordByID(2) = %+v, %v", rec, ok)
	}

	for _, id := range []any{nil, "", "abc", 99, 1.5, true} {
		if got, ok := b.LabelByID(id); ok {
			t.Errorf("LabelByID(%v) = %q, want not found", id, got)
		}
	}
	for _, name := range []string{"", "  ", " OPEN ", "open", "MISSING", "เปิด"} {
		if got, ok := b.ByName(name); ok {
			t.Errorf("ByName(%q) = %+v, want not found", name, got)
		}
	}
}

func TestBinding_ByNameExactMatch(t *testing.T) {
	list := store.List{
		{ID: 1, Code: "OPEN", Name: "เปิด"},
		{ID: 2, Code: " ", Name: "ว่าง"},
		{ID: 3, Code: " PENDING ", Name: "รอ"},
	}
	s := newStore(&scriptedFetcher{list: list})
	if _, err := s.FetchAll(context.Background(), store.FetchOptions{}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	b := Activate(context.Background(), s, WithLogger(testLogger()))
	defer b.Deactivate()

	tests := []struct {
		name   string
		wantID int64
		wantOK bool
	}{
		{name: " ", wantID: 2, wantOK: true},
		{name: " PENDING ", wantID: 3, wantOK: true},
		{name: "PENDING", wantOK: false},
		{name: "", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := b.ByName(tt.name)
		if ok != tt.wantOK {
			t.Errorf("ByName(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if ok && got.ID != tt.wantID {
			t.Errorf("ByName(%q) id = %d, want %d", tt.name, got.ID, tt.wantID)
		}
	}
}

func TestBinding_AccessorsWhileLoading(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), gate: make(chan struct{})}
	b := Activate(context.Background(), newStore(f), WithLogger(testLogger()))
	defer func() {
		b.Deactivate()
		close(f.gate)
	}()

	if _, ok := b.LabelByID(1); ok {
		t.Error("LabelByID(1) found a record before load")
	}
	if _, ok := b.ByName("OPEN"); ok {
		t.Error("ByName(OPEN) found a record before load")
	}
}

func TestBinding_RefetchFailureKeepsData(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), results: []error{nil, errors.New("timeout")}}
	s := newStore(f)
	if _, err := s.FetchAll(context.Background(), store.FetchOptions{}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	b := Activate(context.Background(), s, WithLogger(testLogger()))
	defer b.Deactivate()

	before := b.State()

	list, err := b.Refetch(context.Background())
	if err == nil {
		t.Fatal("Refetch() error = nil, want error")
	}
	if list != nil {
		t.Errorf("Refetch() list = %v, want nil", list)
	}

	after := b.State()
	if after.IsLoading {
		t.Error("IsLoading = true after failed refetch")
	}
	if after.Err == nil {
		t.Error("Err = nil after failed refetch")
	}
	if len(after.Statuses) != len(before.Statuses) || len(after.ByID) != 2 || len(after.ByName) != 2 {
		t.Errorf("state after failure = %+v, want previous data", after)
	}
	if got, ok := b.LabelByID(1); !ok || got != "เปิด" {
		t.Errorf("LabelByID(1) after failure = %q, %v", got, ok)
	}
}

func TestBinding_RefetchSuccessClearsError(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), results: []error{errors.New("first fails")}}
	s := newStore(f)

	rec := newRecorder()
	b := Activate(context.Background(), s, WithOnChange(rec.record), WithLogger(testLogger()))
	defer b.Deactivate()

	if st := rec.next(t); st.Err == nil {
		t.Fatalf("first state = %+v, want error", st)
	}

	list, err := b.Refetch(context.Background())
	if err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Refetch() = %v, want 2 records", list)
	}

	st := b.State()
	if st.Err != nil || st.IsLoading || len(st.Statuses) != 2 {
		t.Errorf("State() = %+v, want populated without error", st)
	}
}

func TestBinding_FollowsOtherConsumersRefetch(t *testing.T) {
	f := &scriptedFetcher{list: sampleList()}
	s := newStore(f)
	if _, err := s.FetchAll(context.Background(), store.FetchOptions{}); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	rec := newRecorder()
	watcher := Activate(context.Background(), s, WithOnChange(rec.record), WithLogger(testLogger()))
	defer watcher.Deactivate()

	f.mu.Lock()
	f.list = append(sampleList(), store.Record{ID: 3, Code: "ARCHIVED", Name: "เก็บถาวร"})
	f.mu.Unlock()

	other := Activate(context.Background(), s, WithLogger(testLogger()))
	defer other.Deactivate()
	if _, err := other.Refetch(context.Background()); err != nil {
		t.Fatalf("Refetch() error = %v", err)
	}

	st := rec.next(t)
	if len(st.Statuses) != 3 {
		t.Errorf("watcher saw %d statuses, want 3", len(st.Statuses))
	}
	if got, ok := watcher.CodeByID(3); !ok || got != "ARCHIVED" {
		t.Errorf("CodeByID(3) = %q, %v; want ARCHIVED", got, ok)
	}
}

func TestBinding_NoUpdatesAfterDeactivate(t *testing.T) {
	f := &scriptedFetcher{list: sampleList(), gate: make(chan struct{})}
	s := newStore(f)

	var changes atomic.Int64
	b := Activate(context.Background(), s,
		WithOnChange(func(State) { changes.Add(1) }),
		WithLogger(testLogger()),
	)

	b.Deactivate()
	b.Deactivate()

	close(f.gate)

	// wait for the shared fetch to settle in the store
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.GetCached(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("store never received the fetch result")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if n := changes.Load(); n != 0 {
		t.Errorf("state changes after Deactivate = %d, want 0", n)
	}
	if st := b.State(); !st.IsLoading {
		t.Errorf("State() = %+v, want frozen loading state", st)
	}
	if n := s.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", n)
	}
}
