package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// fileField is the multipart field holding the PDF.
	fileField = "file"

	// formOverhead is the room allowed for multipart framing and other fields.
	formOverhead int64 = 1 << 20

	defaultForwardTimeout = 60 * time.Second
)

// Doer sends an HTTP request. *http.Client and *poller.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result describes one handled upload for observers.
type Result struct {
	Route    string
	FileName string
	Size     int64
	Status   int
	Err      error
}

// Observer is notified after every handled upload, accepted or not.
type Observer func(Result)

// ErrorResponse is the JSON body of locally generated error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Proxy validates multipart PDF uploads and forwards them to a backend URL.
//
// The request body, Content-Type and Authorization headers are forwarded
// unchanged; the backend's status, Content-Type and body are relayed back
// verbatim.
type Proxy struct {
	name     string
	target   string
	maxSize  int64
	timeout  time.Duration
	client   Doer
	logger   *slog.Logger
	observer Observer
}

// ProxyOption configures a [Proxy].
type ProxyOption func(*Proxy)

// WithMaxSize sets the largest accepted file. Defaults to [DefaultMaxSize].
func WithMaxSize(n int64) ProxyOption {
	return func(p *Proxy) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// WithTimeout bounds the backend call. Defaults to 60 seconds.
func WithTimeout(d time.Duration) ProxyOption {
	return func(p *Proxy) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the proxy's logger.
func WithLogger(logger *slog.Logger) ProxyOption {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers a callback for handled uploads.
func WithObserver(fn Observer) ProxyOption {
	return func(p *Proxy) {
		p.observer = fn
	}
}

// NewProxy creates a [Proxy] named name that forwards to target.
// A nil client uses http.DefaultClient.
func NewProxy(name, target string, client Doer, opts ...ProxyOption) *Proxy {
	if client == nil {
		client = http.DefaultClient
	}
	p := &Proxy{
		name:    name,
		target:  target,
		maxSize: DefaultMaxSize,
		timeout: defaultForwardTimeout,
		client:  client,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ServeHTTP handles one upload request.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := Result{Route: p.name}

	body, file, err := p.readUpload(w, r)
	if file != nil {
		res.FileName = file.Name
		res.Size = file.Size
	}
	if err == nil {
		err = Validate(file, p.maxSize)
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		p.logger.Info("upload rejected",
			"route", p.name,
			"status", verr.Status,
			"reason", verr.Message,
		)
		writeError(w, verr.Status, verr.Message)
		res.Status = verr.Status
		res.Err = err
		p.notify(res)
		return
	}

	status, err := p.forward(r, body, w)
	res.Status = status
	if err != nil {
		p.logger.Error("upload forward failed",
			"route", p.name,
			"target", p.target,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		res.Status = http.StatusInternalServerError
		res.Err = err
		p.notify(res)
		return
	}

	p.logger.Info("upload forwarded",
		"route", p.name,
		"file", res.FileName,
		"size", res.Size,
		"backend_status", status,
	)
	p.notify(res)
}

// readUpload buffers the request body and locates the file part.
// A nil *File with a nil error means the form had no file.
func (p *Proxy) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, *File, error) {
	if r.Method != http.MethodPost {
		return nil, nil, &ValidationError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, nil, &ValidationError{Status: http.StatusBadRequest, Message: "Request must be multipart/form-data"}
	}

	limited := http.MaxBytesReader(w, r.Body, p.maxSize+formOverhead)
	body, err := io.ReadAll(limited)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, &ValidationError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: "Request body too large",
			}
		}
		return nil, nil, &ValidationError{Status: http.StatusBadRequest, Message: "Failed to read request body"}
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return body, nil, nil
		}
		if err != nil {
			return nil, nil, &ValidationError{Status: http.StatusBadRequest, Message: "Invalid form data"}
		}
		if part.FormName() != fileField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		size, err := io.Copy(io.Discard, part)
		_ = part.Close()
		if err != nil {
			return nil, nil, &ValidationError{Status: http.StatusBadRequest, Message: "Invalid form data"}
		}
		return body, &File{
			Name:        part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        size,
		}, nil
	}
}

// forward sends body to the backend and relays the response into w.
// It returns the backend status, or an error if no response was received.
func (p *Proxy) forward(r *http.Request, body []byte, w http.ResponseWriter) (int, error) {
	ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.target, bytes.NewReader(body))
	if err != nil {
		return 0, &UpstreamError{Target: p.target, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", r.Header.Get("Content-Type"))
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &UpstreamError{Target: p.target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		// headers are already sent; nothing left to tell the client
		p.logger.Warn("relaying backend response failed", "route", p.name, "error", err)
	}
	return resp.StatusCode, nil
}

func (p *Proxy) notify(res Result) {
	if p.observer != nil {
		p.observer(res)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	data, err := sonic.Marshal(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
