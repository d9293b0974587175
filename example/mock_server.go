package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockStatus mirrors one row of the backend's status table.
type mockStatus struct {
	ID   int    `json:"status_id"`
	Code string `json:"status_code"`
	Name string `json:"status_name"`
}

// StartMockBackend runs a stand-in for the research fund backend.
//
// It serves the status list under /api/statuses and accepts uploads on
// /api/fund-forms/upload and /api/{kind}/files. A new status is appended
// about once a minute so scheduled refreshes have something to pick up.
// Call this in a goroutine before starting fundboard.
func StartMockBackend(addr string) {
	var (
		mu       sync.Mutex
		statuses = []mockStatus{
			{ID: 1, Code: "DRAFT", Name: "Draft"},
			{ID: 2, Code: "SUBMITTED", Name: "Submitted"},
			{ID: 3, Code: "UNDER_REVIEW", Name: "Under review"},
			{ID: 4, Code: "APPROVED", Name: "Approved"},
		}
		extra    = []mockStatus{{ID: 5, Code: "FUNDED", Name: "Funded"}, {ID: 6, Code: "CLOSED", Name: "Closed"}}
		nextAddn = time.Now().Add(time.Minute)
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/statuses", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if len(extra) > 0 && time.Now().After(nextAddn) {
			slog.Info("mock backend added status", "code", extra[0].Code)
			statuses = append(statuses, extra[0])
			extra = extra[1:]
			nextAddn = time.Now().Add(time.Minute)
		}
		list := append([]mockStatus(nil), statuses...)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"success": true, "data": list}); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	accept := func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			writeMockJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "missing token"})
			return
		}
		name, size := firstFile(r)
		slog.Info("mock backend received upload", "path", r.URL.Path, "file", name, "size", size)
		writeMockJSON(w, http.StatusCreated, map[string]any{"success": true, "file": name, "size": size})
	}
	mux.HandleFunc("POST /api/fund-forms/upload", accept)
	mux.HandleFunc("POST /api/{kind}/files", accept)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock backend error", "error", err)
	}
}

// firstFile returns the name and size of the "file" part, if any.
func firstFile(r *http.Request) (string, int64) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", 0
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return "", 0
		}
		if part.FormName() == "file" {
			return readPart(part)
		}
		_ = part.Close()
	}
}

func readPart(part *multipart.Part) (string, int64) {
	defer func() { _ = part.Close() }()
	n, _ := io.Copy(io.Discard, part)
	return part.FileName(), n
}

func writeMockJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
