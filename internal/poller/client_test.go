package poller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestClient_ConnectionReuse verifies that sequential requests to the same
// host reuse pooled connections.
func TestClient_ConnectionReuse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := NewClient()

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5
	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		resp := client.Get(ctx, server.URL, nil, 5*time.Second)
		if resp.Error != nil {
			t.Fatalf("request %d failed: %v", i, resp.Error)
		}
	}

	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

func TestClient_GetSendsHeaders(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	resp := NewClient().Get(context.Background(), server.URL,
		map[string]string{"Authorization": "Bearer abc"}, time.Second)
	if resp.Error != nil {
		t.Fatalf("Get() error = %v", resp.Error)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("Body = %q, want ok", resp.Body)
	}
}

func TestClient_GetTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	resp := NewClient().Get(context.Background(), server.URL, nil, 50*time.Millisecond)
	if resp.Error == nil {
		t.Fatal("Get() error = nil, want timeout")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", resp.StatusCode)
	}
}

func TestClient_GetBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", maxResponseBodySize+100)))
	}))
	defer server.Close()

	resp := NewClient().Get(context.Background(), server.URL, nil, 5*time.Second)
	if resp.Error != nil {
		t.Fatalf("Get() error = %v", resp.Error)
	}
	if len(resp.Body) != maxResponseBodySize {
		t.Errorf("len(Body) = %d, want %d", len(resp.Body), maxResponseBodySize)
	}
}

func TestClient_GetInvalidURL(t *testing.T) {
	resp := NewClient().Get(context.Background(), "://bad", nil, time.Second)
	if resp.Error == nil {
		t.Fatal("Get() error = nil, want error")
	}
	if !strings.Contains(resp.Error.Error(), "failed to create request") {
		t.Errorf("Error = %v, want create request failure", resp.Error)
	}
}

// TestClient_Close verifies that Close() is safe to call and idempotent.
func TestClient_Close(t *testing.T) {
	client := NewClient()
	client.Close()
	client.Close()
}

// TestClient_Close_NilClient verifies that Close() handles nil receiver safely.
func TestClient_Close_NilClient(t *testing.T) {
	var client *Client
	client.Close()
}
