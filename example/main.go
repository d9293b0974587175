package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/researchfund/fundboard"
)

func main() {
	// start mock backend (see mock_server.go)
	go StartMockBackend(":9999")
	time.Sleep(100 * time.Millisecond)

	form, err := fundboard.NewUploadRoute("fund-form", "/api/upload",
		"http://localhost:9999/api/fund-forms/upload",
	)
	if err != nil {
		slog.Error("failed to create upload route", "error", err)
		os.Exit(1)
	}

	// one declaration, one route per report kind
	reports, err := fundboard.NewUploadRouteSet("reports",
		fundboard.WithPathTemplate("/api/{{.kind}}/upload"),
		fundboard.WithTargetTemplate("http://localhost:9999/api/{{.kind}}/files"),
		fundboard.WithDimensions(map[string][]string{
			"kind": {"progress-report", "final-report"},
		}),
		fundboard.WithSetMaxSize(10<<20),
	)
	if err != nil {
		slog.Error("failed to create upload route set", "error", err)
		os.Exit(1)
	}

	fb, err := fundboard.New(
		fundboard.WithStatusURL("http://localhost:9999/api/statuses"),
		fundboard.WithRefreshSchedule("@every 30s"),
		fundboard.WithUploadRoute(form),
		fundboard.WithUploadRoutes(reports...),
		fundboard.WithPort(8080),
		fundboard.WithContributors(
			fundboard.Contributor{Name: "Dr. Somchai Jaidee", Role: "Principal investigator", Email: "somchai@example.ac.th"},
			fundboard.Contributor{Name: "Anong Srisuk", Role: "Research assistant"},
		),
		fundboard.WithUploadCallback(func(e fundboard.UploadEvent) {
			if !e.Accepted() {
				slog.Warn("upload not accepted", "route", e.Route, "status", e.Status)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create fundboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Research Fund Admin demo")
	fmt.Println()
	fmt.Println("  Dashboard:  http://localhost:8080")
	fmt.Println("  Statuses:   http://localhost:8080/api/statuses")
	fmt.Println("  Uploads:    POST a PDF to /api/upload, /api/progress-report/upload")
	fmt.Println("              or /api/final-report/upload with a Bearer token")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fb.Start(ctx); err != nil {
		slog.Error("fundboard error", "error", err)
		os.Exit(1)
	}
}
