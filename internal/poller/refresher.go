package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/researchfund/fundboard/internal/store"
)

// DefaultRefreshSchedule forces a status refresh every ten minutes.
const DefaultRefreshSchedule = "@every 10m"

// Refreshable is the part of [store.Store] the refresher needs.
type Refreshable interface {
	FetchAll(ctx context.Context, opts store.FetchOptions) (store.List, error)
}

// Refresher periodically forces a refetch of the status cache on a cron
// schedule, so long-running processes pick up backend changes without a
// consumer calling refetch.
//
// Start and Stop are safe for concurrent use and idempotent.
type Refresher struct {
	target  Refreshable
	spec    string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
	stopped bool
}

// NewRefresher validates spec and returns a stopped [Refresher].
//
// spec accepts standard five-field cron expressions and descriptors such as
// "@hourly" or "@every 5m". An empty spec selects [DefaultRefreshSchedule].
func NewRefresher(target Refreshable, spec string, timeout time.Duration, logger *slog.Logger) (*Refresher, error) {
	if spec == "" {
		spec = DefaultRefreshSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		target:  target,
		spec:    spec,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Schedule returns the cron spec in use.
func (r *Refresher) Schedule() string {
	return r.spec
}

// Start begins the schedule. The refresher stops on its own when ctx is
// cancelled. Calling Start after Stop does nothing.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.spec, func() { r.RunOnce(ctx) }); err != nil {
		// spec was validated in NewRefresher
		r.logger.Error("failed to schedule status refresh", "schedule", r.spec, "error", err)
		return
	}
	c.Start()
	r.cron = c
	r.started = true

	r.logger.Info("status refresh scheduled", "schedule", r.spec)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	c := r.cron
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce performs a single forced refresh.
func (r *Refresher) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	list, err := r.target.FetchAll(ctx, store.FetchOptions{Force: true})
	if err != nil {
		r.logger.Warn("scheduled status refresh failed",
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	r.logger.Debug("scheduled status refresh completed",
		"count", len(list),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
