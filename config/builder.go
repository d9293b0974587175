package config

import (
	"sort"

	"github.com/researchfund/fundboard"
)

// BuildOptions converts parsed configuration into SDK options.
//
// Upload sets are expanded via cartesian product and appended after the
// direct upload routes. The logger is left to the caller.
func BuildOptions(cfg *Config) ([]fundboard.Option, error) {
	opts := []fundboard.Option{
		fundboard.WithPort(cfg.Port),
		fundboard.WithStatusURL(cfg.Status.URL),
	}

	if cfg.Title != "" {
		opts = append(opts, fundboard.WithTitle(cfg.Title))
	}
	if len(cfg.Status.Headers) > 0 {
		opts = append(opts, fundboard.WithStatusHeaders(mapToKeyValuePairs(cfg.Status.Headers)...))
	}
	if cfg.Status.Envelope != "" {
		opts = append(opts, fundboard.WithStatusEnvelope(cfg.Status.Envelope))
	}
	if cfg.Status.Timeout != 0 {
		opts = append(opts, fundboard.WithFetchTimeout(cfg.Status.Timeout.Duration()))
	}
	if cfg.Status.TTL != 0 {
		opts = append(opts, fundboard.WithStatusTTL(cfg.Status.TTL.Duration()))
	}
	if cfg.Status.Refresh != "" {
		opts = append(opts, fundboard.WithRefreshSchedule(cfg.Status.Refresh))
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		opts = append(opts, fundboard.WithCORSOrigins(cfg.CORS.AllowedOrigins...))
	}
	if cfg.Activity.Capacity > 0 {
		opts = append(opts, fundboard.WithActivityCapacity(cfg.Activity.Capacity))
	}

	if len(cfg.Contributors) > 0 {
		contributors := make([]fundboard.Contributor, 0, len(cfg.Contributors))
		for _, c := range cfg.Contributors {
			contributors = append(contributors, fundboard.Contributor{Name: c.Name, Role: c.Role, Email: c.Email})
		}
		opts = append(opts, fundboard.WithContributors(contributors...))
	}

	routes, err := BuildUploadRoutes(cfg)
	if err != nil {
		return nil, err
	}
	if len(routes) > 0 {
		opts = append(opts, fundboard.WithUploadRoutes(routes...))
	}

	return opts, nil
}

// BuildUploadRoutes converts the uploads and upload_sets sections into SDK
// routes, direct routes first.
func BuildUploadRoutes(cfg *Config) ([]fundboard.UploadRoute, error) {
	var routes []fundboard.UploadRoute

	for _, uc := range cfg.Uploads {
		var opts []fundboard.RouteOption
		if uc.MaxSize > 0 {
			opts = append(opts, fundboard.WithMaxSize(uc.MaxSize.Bytes()))
		}
		if uc.Timeout != 0 {
			opts = append(opts, fundboard.WithForwardTimeout(uc.Timeout.Duration()))
		}
		r, err := fundboard.NewUploadRoute(uc.Name, uc.Path, uc.Target, opts...)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}

	for _, sc := range cfg.UploadSets {
		set, err := fundboard.NewUploadRouteSet(sc.Name,
			fundboard.WithPathTemplate(sc.PathTemplate),
			fundboard.WithTargetTemplate(sc.TargetTemplate),
			fundboard.WithDimensions(sc.Dimensions),
			fundboard.WithSetMaxSize(sc.MaxSize.Bytes()),
			fundboard.WithSetForwardTimeout(sc.Timeout.Duration()),
		)
		if err != nil {
			return nil, err
		}
		routes = append(routes, set...)
	}

	return routes, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
