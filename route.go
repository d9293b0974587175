package fundboard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxUploadSize is the largest accepted upload, 20 MB.
	DefaultMaxUploadSize int64 = 20 << 20

	defaultForwardTimeout = 60 * time.Second
)

// reservedPaths are served by fundboard itself and cannot carry uploads.
var reservedPaths = []string{"/", "/health", "/api/statuses", "/api/sse"}

// UploadRoute is a PDF upload endpoint proxied to the backend.
//
// UploadRoute is immutable after creation via [NewUploadRoute].
type UploadRoute struct {
	name    string
	path    string
	target  string
	maxSize int64
	timeout time.Duration
}

// Name returns the route's identifier, shown in logs and the activity feed.
func (r UploadRoute) Name() string {
	return r.name
}

// Path returns the local URL path the route is mounted at.
func (r UploadRoute) Path() string {
	return r.path
}

// Target returns the backend URL uploads are forwarded to.
func (r UploadRoute) Target() string {
	return r.target
}

// MaxSize returns the largest accepted file in bytes.
func (r UploadRoute) MaxSize() int64 {
	return r.maxSize
}

// Timeout returns the backend call timeout.
func (r UploadRoute) Timeout() time.Duration {
	return r.timeout
}

// NewUploadRoute creates an [UploadRoute] mounted at path that forwards to
// target.
//
// path must start with "/" and must not collide with the status API,
// SSE stream, health or dashboard paths. target must be an absolute http or
// https URL.
//
// Example:
//
//	route, err := fundboard.NewUploadRoute("fund-form", "/api/upload",
//	    os.Getenv("BACKEND_URL")+"/api/fund-forms/upload",
//	    fundboard.WithMaxSize(10<<20),
//	)
func NewUploadRoute(name, path, target string, opts ...RouteOption) (UploadRoute, error) {
	if strings.TrimSpace(name) == "" {
		return UploadRoute{}, errors.New("upload route name cannot be empty")
	}
	if err := validatePath(path); err != nil {
		return UploadRoute{}, fmt.Errorf("upload route %q: %w", name, err)
	}
	if err := validateTarget(target); err != nil {
		return UploadRoute{}, fmt.Errorf("upload route %q: %w", name, err)
	}

	cfg := &routeConfig{
		maxSize: DefaultMaxUploadSize,
		timeout: defaultForwardTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return UploadRoute{}, fmt.Errorf("upload route %q: %w", name, err)
		}
	}

	return UploadRoute{
		name:    name,
		path:    path,
		target:  target,
		maxSize: cfg.maxSize,
		timeout: cfg.timeout,
	}, nil
}

func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must start with /", path)
	}
	if strings.ContainsAny(path, " {}") {
		return fmt.Errorf("path %q must not contain spaces or braces", path)
	}
	for _, p := range reservedPaths {
		if path == p || (p != "/" && strings.HasPrefix(path, p+"/")) {
			return fmt.Errorf("path %q is reserved", path)
		}
	}
	return nil
}

func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("target URL must have an http or https scheme")
	}
	if u.Host == "" {
		return errors.New("target URL must have a host")
	}
	return nil
}

// routeConfig holds mutable state during route construction.
type routeConfig struct {
	maxSize int64
	timeout time.Duration
}

// RouteOption configures an [UploadRoute].
type RouteOption func(*routeConfig) error

// WithMaxSize sets the largest accepted file in bytes.
// Defaults to [DefaultMaxUploadSize].
//
// Returns an error if n is not positive.
func WithMaxSize(n int64) RouteOption {
	return func(cfg *routeConfig) error {
		if n <= 0 {
			return errors.New("max size must be positive")
		}
		cfg.maxSize = n
		return nil
	}
}

// WithForwardTimeout bounds the backend call. Defaults to 60 seconds.
//
// Returns an error if d is not positive.
func WithForwardTimeout(d time.Duration) RouteOption {
	return func(cfg *routeConfig) error {
		if d <= 0 {
			return errors.New("forward timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}
