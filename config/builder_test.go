package config

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/researchfund/fundboard"
)

func TestBuildOptions_Minimal(t *testing.T) {
	cfg := &Config{
		Port:   9090,
		Status: StatusConfig{URL: "https://backend.example/api/statuses"},
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	fb, err := fundboard.New(opts...)
	if err != nil {
		t.Fatalf("fundboard.New() error = %v", err)
	}
	if fb.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", fb.Port())
	}
	if fb.StatusURL() != "https://backend.example/api/statuses" {
		t.Errorf("StatusURL() = %q", fb.StatusURL())
	}
	if fb.RefreshSchedule() != "@every 10m" {
		t.Errorf("RefreshSchedule() = %q, want default", fb.RefreshSchedule())
	}
	if len(fb.UploadRoutes()) != 0 {
		t.Errorf("len(UploadRoutes()) = %d, want 0", len(fb.UploadRoutes()))
	}
}

func TestBuildOptions_Full(t *testing.T) {
	cfg := &Config{
		Title: "Fund Admin",
		Port:  8081,
		Status: StatusConfig{
			URL:      "https://backend.example/api/statuses",
			Envelope: "$.result",
			Headers:  map[string]string{"Authorization": "Bearer t"},
			Timeout:  Duration(5 * time.Second),
			TTL:      Duration(time.Minute),
			Refresh:  "@hourly",
		},
		Uploads: []UploadConfig{
			{Name: "form", Path: "/api/upload", Target: "https://backend.example/api/upload", MaxSize: ByteSize(1 << 20)},
		},
		UploadSets: []UploadSetConfig{
			{
				Name:           "reports",
				PathTemplate:   "/api/{{.kind}}/upload",
				TargetTemplate: "https://backend.example/api/{{.kind}}",
				Dimensions:     map[string][]string{"kind": {"final", "progress"}},
				Timeout:        Duration(20 * time.Second),
			},
		},
		CORS:     CORSConfig{AllowedOrigins: []string{"https://admin.example"}},
		Activity: ActivityConfig{Capacity: 10},
		Contributors: []ContributorConfig{
			{Name: "Dr. Somchai", Role: "Principal investigator", Email: "somchai@example.ac.th"},
		},
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	fb, err := fundboard.New(opts...)
	if err != nil {
		t.Fatalf("fundboard.New() error = %v", err)
	}

	if fb.RefreshSchedule() != "@hourly" {
		t.Errorf("RefreshSchedule() = %q, want @hourly", fb.RefreshSchedule())
	}

	routes := fb.UploadRoutes()
	if len(routes) != 3 {
		t.Fatalf("len(UploadRoutes()) = %d, want 3", len(routes))
	}
	if routes[0].Name() != "form" || routes[0].MaxSize() != 1<<20 {
		t.Errorf("routes[0] = %s max %d", routes[0].Name(), routes[0].MaxSize())
	}
	if routes[1].Name() != "reports (final)" || routes[1].Path() != "/api/final/upload" {
		t.Errorf("routes[1] = %s %s", routes[1].Name(), routes[1].Path())
	}
	if routes[2].Timeout() != 20*time.Second {
		t.Errorf("routes[2].Timeout() = %v, want 20s", routes[2].Timeout())
	}
	if routes[2].MaxSize() != fundboard.DefaultMaxUploadSize {
		t.Errorf("routes[2].MaxSize() = %d, want default", routes[2].MaxSize())
	}

	want := []fundboard.Contributor{{Name: "Dr. Somchai", Role: "Principal investigator", Email: "somchai@example.ac.th"}}
	if got := fb.Contributors(); !reflect.DeepEqual(got, want) {
		t.Errorf("Contributors() = %+v, want %+v", got, want)
	}
}

func TestBuildUploadRoutes_ReservedPath(t *testing.T) {
	cfg := &Config{
		Uploads: []UploadConfig{
			{Name: "bad", Path: "/api/statuses", Target: "https://b/u"},
		},
	}

	_, err := BuildUploadRoutes(cfg)
	if err == nil || !strings.Contains(err.Error(), "reserved") {
		t.Errorf("BuildUploadRoutes() error = %v, want reserved path error", err)
	}
}

func TestBuildUploadRoutes_MissingTemplateKey(t *testing.T) {
	cfg := &Config{
		UploadSets: []UploadSetConfig{
			{
				Name:           "reports",
				PathTemplate:   "/api/{{.kind}}/upload",
				TargetTemplate: "https://b/{{.missing}}",
				Dimensions:     map[string][]string{"kind": {"a"}},
			},
		},
	}

	if _, err := BuildUploadRoutes(cfg); err == nil {
		t.Error("BuildUploadRoutes() error = nil, want template execution error")
	}
}

func TestBuildOptions_DuplicateRoutesRejectedByNew(t *testing.T) {
	cfg := &Config{
		Port:   8080,
		Status: StatusConfig{URL: "https://b/s"},
		Uploads: []UploadConfig{
			{Name: "form", Path: "/api/upload", Target: "https://b/u"},
			{Name: "form", Path: "/api/upload2", Target: "https://b/u"},
		},
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := fundboard.New(opts...); err == nil {
		t.Error("fundboard.New() error = nil, want duplicate name error")
	}
}

func TestMapToKeyValuePairs(t *testing.T) {
	got := mapToKeyValuePairs(map[string]string{"b": "2", "a": "1"})
	want := []string{"a", "1", "b", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mapToKeyValuePairs() = %v, want %v", got, want)
	}
}
