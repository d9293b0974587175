// Package activity keeps a bounded, in-memory log of recent upload events
// for the admin dashboard.
package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events a [Feed] retains by default.
const DefaultCapacity = 50

// Event is one handled upload.
type Event struct {
	ID       string    `json:"id"`
	Route    string    `json:"route"`
	FileName string    `json:"file_name,omitempty"`
	Size     int64     `json:"size"`
	Status   int       `json:"status"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Accepted reports whether the backend answered with a 2xx status.
func (e Event) Accepted() bool {
	return e.Status >= 200 && e.Status < 300
}

// Feed is a fixed-size ring buffer of events. The zero value is not usable;
// create one with [NewFeed].
type Feed struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
	now    func() time.Time
}

// NewFeed returns a feed holding at most capacity events.
// A capacity <= 0 selects [DefaultCapacity].
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		events: make([]Event, capacity),
		now:    time.Now,
	}
}

// Record appends e, evicting the oldest event when the feed is full.
// Missing ID and At fields are filled in. The stored event is returned.
func (f *Feed) Record(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if e.At.IsZero() {
		e.At = f.now()
	}
	f.events[f.next] = e
	f.next = (f.next + 1) % len(f.events)
	if f.next == 0 {
		f.full = true
	}
	return e
}

// Recent returns up to n events, newest first. n <= 0 returns all of them.
func (f *Feed) Recent(n int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	size := f.lenLocked()
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.events)) % len(f.events)
		out = append(out, f.events[idx])
	}
	return out
}

// Len returns the number of retained events.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lenLocked()
}

func (f *Feed) lenLocked() int {
	if f.full {
		return len(f.events)
	}
	return f.next
}
