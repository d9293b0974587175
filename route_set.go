package fundboard

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/template"
	"time"
)

// NewUploadRouteSet creates one [UploadRoute] per combination of dimension
// values, expanding a path template and a target template.
//
// Both templates use text/template syntax with the dimension keys as
// variables. Values are path-escaped before interpolation and missing keys
// are an error. Route names have the form "base (v1/v2)", with values ordered
// by sorted key.
//
// Example:
//
//	routes, err := fundboard.NewUploadRouteSet("reports",
//	    fundboard.WithPathTemplate("/api/{{.kind}}/upload"),
//	    fundboard.WithTargetTemplate("https://backend/api/{{.kind}}/files"),
//	    fundboard.WithDimensions(map[string][]string{
//	        "kind": {"progress-report", "final-report"},
//	    }),
//	)
func NewUploadRouteSet(baseName string, opts ...RouteSetOption) ([]UploadRoute, error) {
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.New("base name cannot be empty")
	}

	cfg := &routeSetConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.pathTemplate == "" {
		return nil, errors.New("path template required")
	}
	if cfg.targetTemplate == "" {
		return nil, errors.New("target template required")
	}
	if len(cfg.dimensions) == 0 {
		return nil, errors.New("at least one dimension required")
	}

	pathTmpl, err := template.New("path").Option("missingkey=error").Parse(cfg.pathTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid path template: %w", err)
	}
	targetTmpl, err := template.New("target").Option("missingkey=error").Parse(cfg.targetTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid target template: %w", err)
	}

	var routeOpts []RouteOption
	if cfg.maxSize > 0 {
		routeOpts = append(routeOpts, WithMaxSize(cfg.maxSize))
	}
	if cfg.timeout > 0 {
		routeOpts = append(routeOpts, WithForwardTimeout(cfg.timeout))
	}

	combinations := cartesianProduct(cfg.dimensions)
	routes := make([]UploadRoute, 0, len(combinations))
	for _, combo := range combinations {
		escaped := pathEscapeMap(combo)

		path, err := executeTemplate(pathTmpl, escaped)
		if err != nil {
			return nil, fmt.Errorf("path template execution failed: %w", err)
		}
		target, err := executeTemplate(targetTmpl, escaped)
		if err != nil {
			return nil, fmt.Errorf("target template execution failed: %w", err)
		}

		route, err := NewUploadRoute(formatRouteName(baseName, combo), path, target, routeOpts...)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// cartesianProduct generates all combinations of dimension values.
// Keys are visited in sorted order; values keep their slice order.
//
//	Input:  {"x": ["a","b"], "y": ["1","2"]}
//	Output: [{"x":"a","y":"1"}, {"x":"a","y":"2"}, {"x":"b","y":"1"}, {"x":"b","y":"2"}]
func cartesianProduct(dims map[string][]string) []map[string]string {
	if len(dims) == 0 {
		return nil
	}

	keys := sortedKeys(dims)
	for _, k := range keys {
		if len(dims[k]) == 0 {
			return nil
		}
	}

	total := 1
	for _, k := range keys {
		total *= len(dims[k])
	}
	result := make([]map[string]string, 0, total)

	indices := make([]int, len(keys))
	for {
		combo := make(map[string]string, len(keys))
		for i, k := range keys {
			combo[k] = dims[k][indices[i]]
		}
		result = append(result, combo)

		// odometer increment, rightmost key first
		for i := len(keys) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(dims[keys[i]]) {
				break
			}
			indices[i] = 0
			if i == 0 {
				return result
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pathEscapeMap(m map[string]string) map[string]string {
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[k] = url.PathEscape(v)
	}
	return result
}

func executeTemplate(tmpl *template.Template, data map[string]string) (string, error) {
	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatRouteName(baseName string, combo map[string]string) string {
	keys := sortedKeys(combo)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = combo[k]
	}
	return fmt.Sprintf("%s (%s)", baseName, strings.Join(parts, "/"))
}

// routeSetConfig holds configuration during route set construction.
type routeSetConfig struct {
	pathTemplate   string
	targetTemplate string
	dimensions     map[string][]string
	maxSize        int64
	timeout        time.Duration
}

// RouteSetOption configures [NewUploadRouteSet].
type RouteSetOption func(*routeSetConfig) error

// WithPathTemplate sets the template for local mount paths.
func WithPathTemplate(tmpl string) RouteSetOption {
	return func(cfg *routeSetConfig) error {
		if tmpl == "" {
			return errors.New("path template required")
		}
		cfg.pathTemplate = tmpl
		return nil
	}
}

// WithTargetTemplate sets the template for backend target URLs.
func WithTargetTemplate(tmpl string) RouteSetOption {
	return func(cfg *routeSetConfig) error {
		if tmpl == "" {
			return errors.New("target template required")
		}
		cfg.targetTemplate = tmpl
		return nil
	}
}

// WithDimensions sets the values expanded into the templates.
//
// Returns an error if the map is empty, a dimension has no values, or a
// value is empty or repeated.
func WithDimensions(dims map[string][]string) RouteSetOption {
	return func(cfg *routeSetConfig) error {
		if len(dims) == 0 {
			return errors.New("at least one dimension required")
		}
		for k, vals := range dims {
			if len(vals) == 0 {
				return fmt.Errorf("dimension '%s' has no values", k)
			}
			seen := make(map[string]struct{}, len(vals))
			for i, v := range vals {
				if v == "" {
					return fmt.Errorf("dimension '%s' contains empty value at index %d", k, i)
				}
				if _, dup := seen[v]; dup {
					return fmt.Errorf("dimension '%s' has duplicate value %q", k, v)
				}
				seen[v] = struct{}{}
			}
		}
		cfg.dimensions = dims
		return nil
	}
}

// WithSetMaxSize sets the max upload size for every generated route.
func WithSetMaxSize(n int64) RouteSetOption {
	return func(cfg *routeSetConfig) error {
		if n < 0 {
			return errors.New("max size cannot be negative")
		}
		cfg.maxSize = n
		return nil
	}
}

// WithSetForwardTimeout sets the backend timeout for every generated route.
func WithSetForwardTimeout(d time.Duration) RouteSetOption {
	return func(cfg *routeSetConfig) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		cfg.timeout = d
		return nil
	}
}
