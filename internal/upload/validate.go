// Package upload proxies PDF uploads from the admin UI to the backend service.
//
// Requests are validated locally ([Validate]) before anything is sent
// upstream; accepted requests are forwarded byte-for-byte by [Proxy], and the
// backend's response is relayed unchanged.
package upload

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultMaxSize is the largest accepted file, 20 MB.
const DefaultMaxSize int64 = 20 << 20

// PDFContentType is the only accepted MIME type.
const PDFContentType = "application/pdf"

// File describes the uploaded file part of a multipart request.
type File struct {
	// Name is the client-supplied file name.
	Name string

	// ContentType is the MIME type declared for the part.
	ContentType string

	// Size is the number of bytes in the part.
	Size int64
}

// ValidationError is a client error detected before contacting the backend.
type ValidationError struct {
	// Status is the HTTP status to answer with (400, 405, 413 or 415).
	Status int

	// Message is safe to show to the user.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload rejected (%d): %s", e.Status, e.Message)
}

// UpstreamError reports that the backend call itself failed.
type UpstreamError struct {
	Target string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("forward upload to %s: %v", e.Target, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Validate checks an uploaded file against the PDF and size rules.
//
// A nil file is a missing file. maxSize <= 0 selects [DefaultMaxSize].
func Validate(f *File, maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if f == nil {
		return &ValidationError{Status: http.StatusBadRequest, Message: "No file provided"}
	}

	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || !strings.EqualFold(mediaType, PDFContentType) {
		return &ValidationError{
			Status:  http.StatusUnsupportedMediaType,
			Message: "Only PDF files are allowed",
		}
	}

	if f.Size > maxSize {
		return &ValidationError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: fmt.Sprintf("File size exceeds %s limit", humanize.IBytes(uint64(maxSize))),
		}
	}
	return nil
}
