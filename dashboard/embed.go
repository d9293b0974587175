// Package dashboard renders the admin dashboard page.
//
// The page template is embedded at compile time so the service ships as a
// single binary. [BuildView] turns the data the server already holds (the
// status list, recent upload activity, settings) into display strings and
// [Render] executes the template. Nothing in this package fetches or mutates
// data.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard template.
//
//	assets/
//	  index.html    - dashboard page template with inline CSS
//
//go:embed assets/*
var Assets embed.FS
