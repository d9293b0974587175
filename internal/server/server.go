package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/researchfund/fundboard/dashboard"
	"github.com/researchfund/fundboard/internal/activity"
	"github.com/researchfund/fundboard/internal/binding"
	"github.com/researchfund/fundboard/internal/middleware"
	"github.com/researchfund/fundboard/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write so slow or vanished clients
	// cannot pin a handler goroutine. Must be <= shutdownTimeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// dashboardActivityRows is how many recent uploads the page lists.
	dashboardActivityRows = 20
)

// Route mounts an upload handler at Path.
type Route struct {
	Name    string
	Path    string
	Handler http.Handler
}

// Config holds everything the server needs besides the status source.
type Config struct {
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int

	// Title is the dashboard title.
	Title string

	// Assets holds the dashboard template. Nil disables the dashboard.
	Assets fs.FS

	// Uploads are the upload proxy routes to mount.
	Uploads []Route

	// CORS configures the CORS middleware.
	CORS middleware.CORSConfig

	// Feed supplies the dashboard's activity list. May be nil.
	Feed *activity.Feed

	// Settings are shown as cards on the dashboard.
	Settings []dashboard.Section

	// Contributors fill the dashboard's contributor table. The table is
	// hidden when empty.
	Contributors []dashboard.Contributor
}

// ErrorResponse is the JSON body of error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StateMessage is the JSON form of a binding state sent over SSE.
type StateMessage struct {
	Statuses  store.List `json:"statuses"`
	IsLoading bool       `json:"is_loading"`
	Error     string     `json:"error,omitempty"`
}

// lastFetcher is implemented by stores that track their last replacement.
type lastFetcher interface {
	LastFetched() time.Time
}

// Server handles HTTP requests for the dashboard, status API and uploads.
type Server struct {
	src    binding.Source
	cfg    Config
	logger *slog.Logger

	tmpl    *dashboard.Template
	tmplErr error

	httpServer *http.Server
	addr       net.Addr

	// ctx is the lifetime of the server's own binding.
	ctx       context.Context
	bindOnce  sync.Once
	bind      *binding.Binding
	bindMu    sync.Mutex
	bindClose bool
}

// NewServer creates a [Server] reading statuses from src.
//
// The server is not started until [Server.Start] is called.
func NewServer(src binding.Source, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		src:    src,
		cfg:    cfg,
		logger: logger,
		ctx:    context.Background(),
	}
	if cfg.Assets != nil {
		s.tmpl, s.tmplErr = dashboard.Load(cfg.Assets)
		if s.tmplErr != nil {
			logger.Error("dashboard template unavailable", "error", s.tmplErr)
		}
	}
	return s
}

// Handler returns the server's routes wrapped in its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/statuses", s.handleStatuses)
	mux.HandleFunc("GET /api/statuses/{id}", s.handleStatusByID)
	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /health", s.handleHealth)

	for _, route := range s.cfg.Uploads {
		// method checks are left to the upload handler so it can answer in JSON
		mux.Handle(route.Path, route.Handler)
	}

	if s.cfg.Assets != nil {
		mux.HandleFunc("GET /{$}", s.handleDashboard)
	}

	// outermost first: the correlation id must be in the context before
	// Logging and Recovery read it
	return middleware.Chain(mux,
		middleware.CorrelationID,
		middleware.Logging(s.logger),
		middleware.Recovery(s.logger),
		middleware.CORS(s.cfg.CORS),
	)
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound. The server runs until ctx is
// cancelled, then shuts down with a 5 second grace period.
func (s *Server) Start(ctx context.Context) error {
	s.ctx = ctx

	// bind first so port errors are reported synchronously
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx, which unblocks SSE handlers on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
		s.closeBinding()
	}()

	return nil
}

// Addr returns the bound listener address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	return s.addr
}

// statusBinding returns the server's shared binding, activating it on first use.
func (s *Server) statusBinding() *binding.Binding {
	s.bindOnce.Do(func() {
		s.bindMu.Lock()
		defer s.bindMu.Unlock()
		if s.bindClose {
			return
		}
		s.bind = binding.Activate(s.ctx, s.src, binding.WithLogger(s.logger))
	})
	return s.bind
}

func (s *Server) closeBinding() {
	s.bindMu.Lock()
	s.bindClose = true
	b := s.bind
	s.bindMu.Unlock()
	if b != nil {
		b.Deactivate()
	}
}

// handleStatuses returns the status list, fetching it when needed.
func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	list, err := s.src.FetchAll(r.Context(), store.FetchOptions{Force: force})
	if err != nil {
		s.logger.Warn("status fetch for api failed",
			"force", force,
			"error", err.Error(),
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		s.writeError(w, http.StatusBadGateway, "Failed to fetch statuses")
		return
	}
	if list == nil {
		list = store.List{}
	}

	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, list)
}

// handleStatusByID looks a record up through the server's binding.
func (s *Server) handleStatusByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := store.NormalizeID(id); !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status id %q", id))
		return
	}

	b := s.statusBinding()
	if b == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
		return
	}

	// make sure the cache is populated; the binding sees the result through
	// its subscription before FetchAll returns
	if _, err := s.src.FetchAll(r.Context(), store.FetchOptions{}); err != nil {
		s.writeError(w, http.StatusBadGateway, "Failed to fetch statuses")
		return
	}

	rec, ok := b.RecordByID(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("status %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDashboard renders the admin page from the server's binding.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.tmpl == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	in := dashboard.Input{
		Title:        s.cfg.Title,
		Settings:     s.cfg.Settings,
		Contributors: s.cfg.Contributors,
	}
	if b := s.statusBinding(); b != nil {
		st := b.State()
		in.Statuses = st.Statuses
		in.Loading = st.IsLoading
		in.Err = st.Err
	}
	if lf, ok := s.src.(lastFetcher); ok {
		in.UpdatedAt = lf.LastFetched()
	}
	if s.cfg.Feed != nil {
		in.Activity = s.cfg.Feed.Recent(dashboardActivityRows)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Render(w, dashboard.BuildView(in, time.Now())); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleSSE streams the state of a per-client binding.
//
// Each client gets its own binding; the first message is the current state
// and every later state transition is pushed as it happens. Writes carry a
// deadline so a stuck client cannot block shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// latest state wins; the handler only needs the newest snapshot
	updates := make(chan binding.State, 1)
	push := func(st binding.State) {
		for {
			select {
			case updates <- st:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}

	b := binding.Activate(r.Context(), s.src,
		binding.WithLogger(s.logger),
		binding.WithOnChange(push),
	)
	defer b.Deactivate()

	send := func(st binding.State) error {
		data, err := sonic.Marshal(toMessage(st))
		if err != nil {
			s.logger.Error("failed to encode sse state", "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	if err := send(b.State()); err != nil {
		return
	}

	for {
		select {
		case st := <-updates:
			if err := send(st); err != nil {
				return
			}
		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown (BaseContext)
			return
		}
	}
}

func toMessage(st binding.State) StateMessage {
	msg := StateMessage{
		Statuses:  st.Statuses,
		IsLoading: st.IsLoading,
	}
	if msg.Statuses == nil {
		msg.Statuses = store.List{}
	}
	if st.Err != nil {
		msg.Error = st.Err.Error()
	}
	return msg
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
