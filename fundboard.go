package fundboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/researchfund/fundboard/dashboard"
	"github.com/researchfund/fundboard/internal/activity"
	"github.com/researchfund/fundboard/internal/middleware"
	"github.com/researchfund/fundboard/internal/poller"
	"github.com/researchfund/fundboard/internal/server"
	"github.com/researchfund/fundboard/internal/store"
	"github.com/researchfund/fundboard/internal/upload"
)

const (
	defaultPort         = 8080
	defaultFetchTimeout = 10 * time.Second
)

// Fundboard is the admin companion service: a shared status cache served
// over REST and SSE, PDF upload proxy routes, and a dashboard.
//
// It is created using [New] with functional options and started with
// [Fundboard.Start]:
//
//	fb, err := fundboard.New(
//	    fundboard.WithStatusURL(os.Getenv("BACKEND_URL")+"/api/statuses"),
//	    fundboard.WithUploadRoute(route),
//	)
//	if err != nil {
//	    slog.Error("failed to create fundboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	fb.Start(ctx) // blocks until context cancelled
type Fundboard struct {
	title            string
	port             int
	logger           *slog.Logger
	statusURL        string
	statusHeaders    map[string]string
	envelope         string
	fetchTimeout     time.Duration
	statusTTL        time.Duration
	refreshSchedule  string
	uploads          []UploadRoute
	corsOrigins      []string
	activityCapacity int
	uploadCallbacks  []func(UploadEvent)
	contributors     []Contributor
}

// Contributor is a person listed in the dashboard's contributor table.
type Contributor struct {
	Name  string
	Role  string
	Email string
}

// New creates a [Fundboard] with the given options.
//
// [WithStatusURL] is required. Upload routes must have unique names and
// paths. Defaults: port 8080, fetch timeout 10s, refresh "@every 10m",
// activity capacity 50, any CORS origin.
func New(opts ...Option) (*Fundboard, error) {
	cfg := &fbConfig{
		port:             defaultPort,
		fetchTimeout:     defaultFetchTimeout,
		envelope:         poller.DefaultEnvelope,
		refreshSchedule:  poller.DefaultRefreshSchedule,
		activityCapacity: activity.DefaultCapacity,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.statusURL == "" {
		return nil, errors.New("status URL is required")
	}
	if u, err := url.Parse(cfg.statusURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("status URL must be an http or https URL, got %q", cfg.statusURL)
	}

	names := make(map[string]bool, len(cfg.uploads))
	paths := make(map[string]bool, len(cfg.uploads))
	for _, r := range cfg.uploads {
		if names[r.name] {
			return nil, fmt.Errorf("duplicate upload route name: %q", r.name)
		}
		if paths[r.path] {
			return nil, fmt.Errorf("duplicate upload route path: %q", r.path)
		}
		names[r.name] = true
		paths[r.path] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Fundboard{
		title:            cfg.title,
		port:             cfg.port,
		logger:           logger,
		statusURL:        cfg.statusURL,
		statusHeaders:    cfg.statusHeaders,
		envelope:         cfg.envelope,
		fetchTimeout:     cfg.fetchTimeout,
		statusTTL:        cfg.statusTTL,
		refreshSchedule:  cfg.refreshSchedule,
		uploads:          cfg.uploads,
		corsOrigins:      cfg.corsOrigins,
		activityCapacity: cfg.activityCapacity,
		uploadCallbacks:  cfg.uploadCallbacks,
		contributors:     cfg.contributors,
	}, nil
}

// Start serves the status API, upload routes and dashboard.
//
// Start blocks until ctx is cancelled. The status cache is warmed
// immediately and then refreshed on the configured schedule.
//
// Returns nil on graceful shutdown, or an error if the server cannot start.
func (fb *Fundboard) Start(ctx context.Context) error {
	fb.logger.Info("fundboard starting",
		"status_url", fb.statusURL,
		"upload_routes", len(fb.uploads),
		"refresh", fb.refreshSchedule,
	)

	if ctx.Err() != nil {
		return nil
	}

	client := poller.NewClient()
	defer client.Close()

	fetcher, err := poller.NewStatusFetcher(client, fb.statusURL, fb.statusHeaders, fb.envelope, fb.fetchTimeout)
	if err != nil {
		return fmt.Errorf("failed to create status fetcher: %w", err)
	}

	statusStore := store.NewStatusStore(fetcher,
		store.WithTTL(fb.statusTTL),
		store.WithFetchTimeout(fb.fetchTimeout),
		store.WithLogger(fb.logger),
	)

	refresher, err := poller.NewRefresher(statusStore, fb.refreshSchedule, fb.fetchTimeout, fb.logger)
	if err != nil {
		return fmt.Errorf("failed to create refresher: %w", err)
	}

	feed := activity.NewFeed(fb.activityCapacity)
	observer := fb.uploadObserver(feed)

	routes := make([]server.Route, 0, len(fb.uploads))
	for _, r := range fb.uploads {
		routes = append(routes, server.Route{
			Name: r.name,
			Path: r.path,
			Handler: upload.NewProxy(r.name, r.target, client,
				upload.WithMaxSize(r.maxSize),
				upload.WithTimeout(r.timeout),
				upload.WithLogger(fb.logger),
				upload.WithObserver(observer),
			),
		})
	}

	cors := middleware.DefaultCORSConfig()
	if len(fb.corsOrigins) > 0 {
		cors.AllowedOrigins = fb.corsOrigins
	}

	httpServer := server.NewServer(statusStore, server.Config{
		Port:         fb.port,
		Title:        fb.title,
		Assets:       dashboard.Assets,
		Uploads:      routes,
		CORS:         cors,
		Feed:         feed,
		Settings:     fb.settings(),
		Contributors: fb.dashboardContributors(),
	}, fb.logger)
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	fb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", fb.port))

	// warm the cache so the first consumers start populated
	go refresher.RunOnce(ctx)
	refresher.Start(ctx)

	<-ctx.Done()
	refresher.Stop()
	fb.logger.Info("fundboard stopped")
	return nil
}

// uploadObserver records proxy results into feed and fans them out to the
// registered callbacks.
func (fb *Fundboard) uploadObserver(feed *activity.Feed) upload.Observer {
	return func(res upload.Result) {
		ev := activity.Event{
			Route:    res.Route,
			FileName: res.FileName,
			Size:     res.Size,
			Status:   res.Status,
		}
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
		ev = feed.Record(ev)

		if len(fb.uploadCallbacks) == 0 {
			return
		}
		public := UploadEvent{
			ID:       ev.ID,
			Route:    ev.Route,
			FileName: ev.FileName,
			Size:     ev.Size,
			Status:   ev.Status,
			Err:      res.Err,
			At:       ev.At,
		}
		for _, cb := range fb.uploadCallbacks {
			invokeCallbackSafe(cb, public, fb.logger)
		}
	}
}

// settings describes the running configuration for the dashboard cards.
// Header values are omitted since they usually carry credentials.
func (fb *Fundboard) settings() []dashboard.Section {
	ttl := "until next refresh"
	if fb.statusTTL > 0 {
		ttl = fb.statusTTL.String()
	}
	source := dashboard.Section{
		Title:       "Status source",
		Description: "Reference statuses shared by every page and form.",
		Items: []dashboard.Item{
			{Label: "URL", Value: fb.statusURL},
			{Label: "Envelope", Value: fb.envelope},
			{Label: "Cache TTL", Value: ttl},
			{Label: "Refresh", Value: fb.refreshSchedule},
			{Label: "Fetch timeout", Value: fb.fetchTimeout.String()},
		},
	}
	for _, k := range sortedKeys(fb.statusHeaders) {
		source.Items = append(source.Items, dashboard.Item{Label: "Header", Value: k})
	}

	sections := []dashboard.Section{source}
	if len(fb.uploads) > 0 {
		routes := dashboard.Section{
			Title:       "Upload routes",
			Description: "PDF uploads are validated here and forwarded unchanged.",
		}
		for _, r := range fb.uploads {
			routes.Items = append(routes.Items, dashboard.Item{
				Label: r.path,
				Value: fmt.Sprintf("%s (max %s)", r.target, humanize.IBytes(uint64(r.maxSize))),
			})
		}
		sections = append(sections, routes)
	}
	return sections
}

// Contributors returns a copy of the configured contributor list.
func (fb *Fundboard) Contributors() []Contributor {
	return append([]Contributor(nil), fb.contributors...)
}

func (fb *Fundboard) dashboardContributors() []dashboard.Contributor {
	out := make([]dashboard.Contributor, 0, len(fb.contributors))
	for _, c := range fb.contributors {
		out = append(out, dashboard.Contributor{Name: c.Name, Role: c.Role, Email: c.Email})
	}
	return out
}

// Port returns the configured HTTP port.
func (fb *Fundboard) Port() int {
	return fb.port
}

// StatusURL returns the backend status endpoint.
func (fb *Fundboard) StatusURL() string {
	return fb.statusURL
}

// RefreshSchedule returns the cron schedule for background refreshes.
func (fb *Fundboard) RefreshSchedule() string {
	return fb.refreshSchedule
}

// UploadRoutes returns a copy of the configured upload routes.
func (fb *Fundboard) UploadRoutes() []UploadRoute {
	cp := make([]UploadRoute, len(fb.uploads))
	copy(cp, fb.uploads)
	return cp
}
