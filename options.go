package fundboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// fbConfig holds mutable state during Fundboard construction.
type fbConfig struct {
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

// Option configures a [Fundboard] instance during construction.
//
// Options return an error if validation fails.
type Option func(*fbConfig) error

// WithStatusURL sets the backend endpoint returning the status list.
// Required.
func WithStatusURL(url string) Option {
	return func(cfg *fbConfig) error {
		if url == "" {
			return errors.New("status URL cannot be empty")
		}
		cfg.statusURL = url
		return nil
	}
}

// WithStatusHeaders adds headers sent with every status fetch.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
//	fundboard.WithStatusHeaders("Authorization", "Bearer "+token)
func WithStatusHeaders(keyValues ...string) Option {
	return func(cfg *fbConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithStatusHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.statusHeaders == nil {
			cfg.statusHeaders = make(map[string]string)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.statusHeaders[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithStatusEnvelope sets the JSONPath locating the status array inside an
// object response, for example "$.data" or "$.result.statuses". A bare array
// response is always accepted. Defaults to "$.data".
func WithStatusEnvelope(path string) Option {
	return func(cfg *fbConfig) error {
		cfg.envelope = path
		return nil
	}
}

// WithFetchTimeout bounds each remote status fetch. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *fbConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithStatusTTL sets how long a fetched status list is served without
// refetching. Zero, the default, keeps it until the next forced refresh.
//
// Returns an error if the duration is negative.
func WithStatusTTL(d time.Duration) Option {
	return func(cfg *fbConfig) error {
		if d < 0 {
			return errors.New("status TTL cannot be negative")
		}
		cfg.statusTTL = d
		return nil
	}
}

// WithRefreshSchedule sets the cron schedule for forced background
// refreshes, such as "@every 10m" or "*/15 * * * *". Defaults to "@every 10m".
//
// Returns an error if the schedule does not parse.
func WithRefreshSchedule(spec string) Option {
	return func(cfg *fbConfig) error {
		if _, err := cron.ParseStandard(spec); err != nil {
			return errors.New("invalid refresh schedule: " + err.Error())
		}
		cfg.refreshSchedule = spec
		return nil
	}
}

// WithUploadRoute adds an upload proxy route.
func WithUploadRoute(r UploadRoute) Option {
	return func(cfg *fbConfig) error {
		cfg.uploads = append(cfg.uploads, r)
		return nil
	}
}

// WithUploadRoutes adds several upload proxy routes, such as the output of
// [NewUploadRouteSet].
func WithUploadRoutes(routes ...UploadRoute) Option {
	return func(cfg *fbConfig) error {
		cfg.uploads = append(cfg.uploads, routes...)
		return nil
	}
}

// WithPort sets the HTTP port. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *fbConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *fbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title.
func WithTitle(title string) Option {
	return func(cfg *fbConfig) error {
		cfg.title = title
		return nil
	}
}

// WithCORSOrigins restricts cross-origin access to the listed origins.
// Defaults to allowing any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(cfg *fbConfig) error {
		if len(origins) == 0 {
			return errors.New("at least one CORS origin is required")
		}
		cfg.corsOrigins = append([]string(nil), origins...)
		return nil
	}
}

// WithActivityCapacity sets how many upload events the dashboard keeps.
// Defaults to 50.
//
// Returns an error if n is zero or negative.
func WithActivityCapacity(n int) Option {
	return func(cfg *fbConfig) error {
		if n <= 0 {
			return errors.New("activity capacity must be positive")
		}
		cfg.activityCapacity = n
		return nil
	}
}

// WithContributors lists the people shown in the dashboard's contributor
// table. Repeated calls append.
//
// Returns an error if a contributor has no name.
func WithContributors(contributors ...Contributor) Option {
	return func(cfg *fbConfig) error {
		for i, c := range contributors {
			if strings.TrimSpace(c.Name) == "" {
				return fmt.Errorf("contributor %d: name is required", i)
			}
		}
		cfg.contributors = append(cfg.contributors, contributors...)
		return nil
	}
}

// WithUploadCallback registers a function called after every handled upload.
//
// Callbacks run synchronously on the request goroutine, in registration
// order, and must not block. Panics are recovered and logged. Nil callbacks
// are ignored.
func WithUploadCallback(cb func(UploadEvent)) Option {
	return func(cfg *fbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.uploadCallbacks = append(cfg.uploadCallbacks, cb)
		return nil
	}
}
