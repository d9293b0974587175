package fundboard

import (
	"log/slog"
	"time"
)

// UploadEvent describes one upload request handled by a route, whether it
// was forwarded or rejected locally.
type UploadEvent struct {
	// ID uniquely identifies the event.
	ID string

	// Route is the name of the [UploadRoute] that handled the request.
	Route string

	// FileName is the client-supplied file name, empty if no file was sent.
	FileName string

	// Size is the file size in bytes.
	Size int64

	// Status is the HTTP status returned to the client.
	Status int

	// Err is set when the upload was rejected or the backend call failed.
	Err error

	// At is when the request finished.
	At time.Time
}

// Accepted reports whether the backend accepted the upload.
func (e UploadEvent) Accepted() bool {
	return e.Err == nil && e.Status >= 200 && e.Status < 300
}

// invokeCallbackSafe calls an upload callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(UploadEvent), event UploadEvent, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("upload callback panicked",
				"panic", r,
				"route", event.Route,
			)
		}
	}()
	cb(event)
}
