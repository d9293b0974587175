// Package config provides YAML configuration parsing for fundboard.
//
// This package enables running fundboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Research Fund Admin
//	port: 8080
//
//	status:
//	  url: ${BACKEND_URL}/api/statuses
//	  headers:
//	    Authorization: Bearer ${BACKEND_TOKEN}
//	  refresh: "@every 10m"
//
//	uploads:
//	  - name: fund-form
//	    path: /api/upload
//	    target: ${BACKEND_URL}/api/fund-forms/upload
//	    max_size: 20MiB
//
//	upload_sets:
//	  - name: reports
//	    path_template: "/api/{{.kind}}/upload"
//	    target_template: "${BACKEND_URL}/api/{{.kind}}/files"
//	    dimensions:
//	      kind: [progress-report, final-report]
//
//	contributors:
//	  - name: Dr. Somchai
//	    role: Principal investigator
//	    email: somchai@example.ac.th
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort = 8080

	// minFetchTimeout keeps misconfigured timeouts from failing every fetch.
	minFetchTimeout = 1 * time.Second
)

// Config is the root configuration structure for fundboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "Research Fund Admin".
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Status configures the shared status lookup cache.
	Status StatusConfig `yaml:"status"`

	// Uploads defines individual upload proxy routes.
	Uploads []UploadConfig `yaml:"uploads"`

	// UploadSets defines upload routes that expand via cartesian product.
	UploadSets []UploadSetConfig `yaml:"upload_sets"`

	// CORS restricts cross-origin access to the API.
	CORS CORSConfig `yaml:"cors"`

	// Activity configures the dashboard's recent upload list.
	Activity ActivityConfig `yaml:"activity"`

	// Contributors are listed in the dashboard's contributor table.
	Contributors []ContributorConfig `yaml:"contributors"`
}

// StatusConfig configures where statuses come from and how long they live.
type StatusConfig struct {
	// URL is the backend status endpoint. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Envelope is the JSONPath of the status array inside an object
	// response. Defaults to "$.data".
	Envelope string `yaml:"envelope"`

	// Headers are sent with every status fetch.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds each fetch. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// TTL is how long a fetched list is served before refetching.
	// Zero keeps it until the next scheduled refresh.
	TTL Duration `yaml:"ttl"`

	// Refresh is the cron schedule for forced refreshes. Defaults to
	// "@every 10m".
	Refresh string `yaml:"refresh"`
}

// UploadConfig defines a single upload proxy route.
type UploadConfig struct {
	// Name identifies the route in logs and the activity feed.
	Name string `yaml:"name"`

	// Path is the local URL path, e.g. /api/upload.
	Path string `yaml:"path"`

	// Target is the backend URL uploads are forwarded to.
	// Supports environment variable substitution.
	Target string `yaml:"target"`

	// MaxSize is the largest accepted file, e.g. "20MiB" or "10 MB".
	// Defaults to 20 MiB.
	MaxSize ByteSize `yaml:"max_size"`

	// Timeout bounds the backend call. Defaults to 60s.
	Timeout Duration `yaml:"timeout"`
}

// UploadSetConfig defines upload routes that expand via cartesian product.
//
// For example, with dimensions {kind: [progress, final]} the set expands to
// two routes, one per kind.
type UploadSetConfig struct {
	// Name is the base name for generated routes.
	Name string `yaml:"name"`

	// PathTemplate is a Go template for local paths: /api/{{.kind}}/upload
	PathTemplate string `yaml:"path_template"`

	// TargetTemplate is a Go template for backend URLs.
	// Supports environment variable substitution.
	TargetTemplate string `yaml:"target_template"`

	// Dimensions maps dimension names to their possible values.
	Dimensions map[string][]string `yaml:"dimensions"`

	// MaxSize applies to every generated route.
	MaxSize ByteSize `yaml:"max_size"`

	// Timeout applies to every generated route.
	Timeout Duration `yaml:"timeout"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	// AllowedOrigins defaults to any origin when empty.
	// Values support environment variable substitution.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ActivityConfig sizes the dashboard's upload activity feed.
type ActivityConfig struct {
	// Capacity is how many events are kept. Defaults to 50.
	Capacity int `yaml:"capacity"`
}

// ContributorConfig is one row of the dashboard's contributor table.
type ContributorConfig struct {
	// Name is required.
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Email string `yaml:"email"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that unmarshals from strings like "20MiB",
// "10 MB" or a bare integer.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler for ByteSize.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > 1<<62 {
		return fmt.Errorf("size %q is too large", s)
	}

	*b = ByteSize(n)
	return nil
}

// Bytes returns the size as an int64.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// String formats the size with IEC units.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// ParseLogLevel maps a log_level value to a [slog.Level].
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", s)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the status URL, header values,
// upload targets, target templates and CORS origins. Port defaults to 8080.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Activity.Capacity < 0 {
		return fmt.Errorf("activity.capacity cannot be negative, got %d", c.Activity.Capacity)
	}

	if err := c.Status.expandAndValidate(); err != nil {
		return err
	}

	for i, ct := range c.Contributors {
		if strings.TrimSpace(ct.Name) == "" {
			return fmt.Errorf("contributors[%d]: name is required", i)
		}
	}

	for i := range c.CORS.AllowedOrigins {
		expanded, err := expandEnvVars(c.CORS.AllowedOrigins[i])
		if err != nil {
			return fmt.Errorf("cors.allowed_origins[%d]: %w", i, err)
		}
		c.CORS.AllowedOrigins[i] = expanded
	}

	for i := range c.Uploads {
		u := &c.Uploads[i]

		if u.Name == "" {
			return fmt.Errorf("uploads[%d]: name is required", i)
		}
		if u.Path == "" {
			return fmt.Errorf("uploads[%d] (%s): path is required", i, u.Name)
		}
		if !strings.HasPrefix(u.Path, "/") {
			return fmt.Errorf("uploads[%d] (%s): path must start with /", i, u.Name)
		}

		if u.Target == "" {
			return fmt.Errorf("uploads[%d] (%s): target is required", i, u.Name)
		}
		expanded, err := expandEnvVars(u.Target)
		if err != nil {
			return fmt.Errorf("uploads[%d] (%s): target: %w", i, u.Name, err)
		}
		u.Target = expanded
		if err := validateHTTPURL(u.Target); err != nil {
			return fmt.Errorf("uploads[%d] (%s): target %w", i, u.Name, err)
		}

		if err := validateLimits(u.MaxSize, u.Timeout); err != nil {
			return fmt.Errorf("uploads[%d] (%s): %w", i, u.Name, err)
		}
	}

	for i := range c.UploadSets {
		s := &c.UploadSets[i]

		if s.Name == "" {
			return fmt.Errorf("upload_sets[%d]: name is required", i)
		}

		if s.PathTemplate == "" {
			return fmt.Errorf("upload_sets[%d] (%s): path_template is required", i, s.Name)
		}
		if _, err := template.New("").Parse(s.PathTemplate); err != nil {
			return fmt.Errorf("upload_sets[%d] (%s): invalid path_template: %w", i, s.Name, err)
		}

		if s.TargetTemplate == "" {
			return fmt.Errorf("upload_sets[%d] (%s): target_template is required", i, s.Name)
		}
		expanded, err := expandEnvVars(s.TargetTemplate)
		if err != nil {
			return fmt.Errorf("upload_sets[%d] (%s): target_template: %w", i, s.Name, err)
		}
		s.TargetTemplate = expanded
		// fail fast before the SDK tries to use an invalid template
		if _, err := template.New("").Parse(s.TargetTemplate); err != nil {
			return fmt.Errorf("upload_sets[%d] (%s): invalid target_template: %w", i, s.Name, err)
		}

		if len(s.Dimensions) == 0 {
			return fmt.Errorf("upload_sets[%d] (%s): at least one dimension is required", i, s.Name)
		}
		for dimName, dimValues := range s.Dimensions {
			if len(dimValues) == 0 {
				return fmt.Errorf("upload_sets[%d] (%s): dimension %q has no values", i, s.Name, dimName)
			}
			seen := make(map[string]struct{}, len(dimValues))
			for _, v := range dimValues {
				if _, exists := seen[v]; exists {
					return fmt.Errorf("upload_sets[%d] (%s): dimension %q has duplicate value %q", i, s.Name, dimName, v)
				}
				seen[v] = struct{}{}
			}
		}

		if err := validateLimits(s.MaxSize, s.Timeout); err != nil {
			return fmt.Errorf("upload_sets[%d] (%s): %w", i, s.Name, err)
		}
	}

	return nil
}

func (s *StatusConfig) expandAndValidate() error {
	if s.URL == "" {
		return fmt.Errorf("status.url is required")
	}
	expanded, err := expandEnvVars(s.URL)
	if err != nil {
		return fmt.Errorf("status.url: %w", err)
	}
	s.URL = expanded
	if err := validateHTTPURL(s.URL); err != nil {
		return fmt.Errorf("status.url %w", err)
	}

	for k, v := range s.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("status.headers[%s]: %w", k, err)
		}
		s.Headers[k] = expanded
	}

	if s.Envelope != "" && !strings.HasPrefix(s.Envelope, "$") {
		return fmt.Errorf("status.envelope must be a JSONPath starting with $, got %q", s.Envelope)
	}

	if s.Timeout != 0 && s.Timeout.Duration() < minFetchTimeout {
		return fmt.Errorf("status.timeout must be at least %s if specified, got %s",
			minFetchTimeout, s.Timeout.Duration())
	}
	if s.TTL < 0 {
		return fmt.Errorf("status.ttl cannot be negative, got %s", s.TTL.Duration())
	}

	if s.Refresh != "" {
		if _, err := cron.ParseStandard(s.Refresh); err != nil {
			return fmt.Errorf("status.refresh: invalid schedule %q: %w", s.Refresh, err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

func validateLimits(maxSize ByteSize, timeout Duration) error {
	if maxSize < 0 {
		return fmt.Errorf("max_size cannot be negative")
	}
	if timeout != 0 && timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s if specified, got %s", timeout.Duration())
	}
	return nil
}
