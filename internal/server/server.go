package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/jpalmerr/todostream/internal/eventstream"
	"github.com/jpalmerr/todostream/internal/store"
)

const (
	// defaultTitle is used when no custom title is configured.
	defaultTitle = "Todos"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"

	// maxFormBytes caps the size of an action submission.
	maxFormBytes = 64 << 10

	keepAliveComment = "keep-alive"
)

var eventStreamMediaTypes = []contenttype.MediaType{contenttype.NewMediaType("text/event-stream")}

// Config holds the tunables for a [Server].
type Config struct {
	// Port is the TCP port to listen on. 0 lets the OS pick one.
	Port int

	// Assets is the filesystem holding assets/index.html. May be nil.
	Assets fs.FS

	// Title is the dashboard title (defaults to "Todos" if empty).
	Title string

	// KeepAlive is the interval between comment frames on /api/sse.
	// Zero disables keep-alives.
	KeepAlive time.Duration

	// Retry is the reconnection delay advertised in the first frame of
	// /api/sse. Zero omits the field.
	Retry time.Duration

	// TickInterval is the interval of the /api/ticks counter stream.
	TickInterval time.Duration

	// WriteTimeout bounds each frame write on an event stream. Zero uses
	// the eventstream default.
	WriteTimeout time.Duration
}

// Server handles HTTP requests for the todo dashboard and its event streams.
//
// Server provides these endpoints:
//   - GET /: Serves the embedded dashboard HTML
//   - GET /api/todos: Returns the current todo list as JSON
//   - POST /api/todos: Applies a form-encoded action
//   - GET /api/sse: Server-Sent Events stream of every applied action
//   - GET /api/ticks: Server-Sent Events counter stream
//
// Every event stream is registered with the shared [eventstream.Registry],
// so a process shutdown closes them all before the HTTP server drains.
type Server struct {
	store      store.Store
	registry   *eventstream.Registry
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	stopped    chan struct{}
	logger     *slog.Logger

	// newID generates ids for todos added through the form surface.
	newID func() string
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the todo list
//   - registry: Registry every event stream registers with
//   - cfg: Port, assets, title and stream timings
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, registry *eventstream.Registry, cfg Config, logger *slog.Logger) *Server {
	return &Server{
		store:    st,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Handler returns the route table. It is exposed so tests can mount the
// server on an httptest.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/todos", s.handleTodos)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/ticks", s.handleTicks)

	// serve dashboard assets
	if s.cfg.Assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. When ctx is cancelled the registry is drained, closing every
// open event stream, and the HTTP server shuts down with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln
	s.stopped = make(chan struct{})

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// which aborts every open event stream.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		defer close(s.stopped)
		<-ctx.Done()
		s.registry.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// Stopped is closed once the server has shut down after ctx was cancelled.
// It must only be called after a successful Start.
func (s *Server) Stopped() <-chan struct{} {
	return s.stopped
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleTodos serves the JSON snapshot (GET) and the action surface (POST).
func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSnapshot(w)
	case http.MethodPost:
		s.handleAction(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.store.State()); err != nil {
		s.logger.Error("failed to encode todos response", "error", err)
	}
}

// handleAction applies a form submission. Submissions that do not describe
// a valid action are ignored; the client is always redirected back to the
// dashboard.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if err := r.ParseForm(); err != nil {
		s.logger.Debug("ignoring unparseable action form", "error", err)
	} else if action, ok := s.parseAction(r.PostForm.Get("intent"), r.PostForm.Get("label"), r.PostForm.Get("todo_id")); ok {
		s.store.Dispatch(action)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// parseAction maps the form surface onto store actions.
func (s *Server) parseAction(intent, label, todoID string) (store.Action, bool) {
	switch store.ActionType(intent) {
	case store.ActionAddTodo:
		label = strings.TrimSpace(label)
		if label == "" {
			return store.Action{}, false
		}
		return store.AddTodo(s.newID(), label), true
	case store.ActionCompleteTodo:
		if todoID == "" {
			return store.Action{}, false
		}
		return store.CompleteTodo(todoID), true
	case store.ActionUncompleteTodo:
		if todoID == "" {
			return store.Action{}, false
		}
		return store.UncompleteTodo(todoID), true
	case store.ActionDeleteTodo:
		if todoID == "" {
			return store.Action{}, false
		}
		return store.DeleteTodo(todoID), true
	default:
		return store.Action{}, false
	}
}

// handleSSE streams every applied store action. The first frame is the init
// snapshot.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if !s.prepareStream(w, r) {
		return
	}

	s.logger.Debug("todo stream connected", "remote_addr", r.RemoteAddr)
	ch := eventstream.Open(r.Context(), w, s.registry, s.todoStream, s.streamOptions()...)
	ch.Wait()
	s.logger.Debug("todo stream disconnected", "remote_addr", r.RemoteAddr, "reason", string(ch.Reason()))
}

// todoStream is the initializer for /api/sse. The listener only encodes and
// queues; the channel's writer goroutine does the network write.
func (s *Server) todoStream(send eventstream.SendFunc, _ func()) func() {
	// the store serializes listener calls, so seq needs no locking
	var seq uint64
	unsubscribe := s.store.Subscribe(func(a store.Action) {
		data, err := json.Marshal(a)
		if err != nil {
			s.logger.Error("failed to encode action", "type", string(a.Type), "error", err)
			return
		}

		seq++
		ev := eventstream.Event{ID: strconv.FormatUint(seq, 10), Data: string(data)}
		if seq == 1 && s.cfg.Retry > 0 {
			ev.Retry = eventstream.RetryMillis(float64(s.cfg.Retry.Milliseconds()))
		}
		send(ev)
	})

	stopKeepAlive := s.every(s.cfg.KeepAlive, func() {
		send(eventstream.Event{Comment: keepAliveComment})
	})

	return func() {
		stopKeepAlive()
		unsubscribe()
	}
}

// handleTicks streams an incrementing counter, one "tick" event per tick
// interval. An optional ?limit=N closes the stream after N ticks.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	if !s.prepareStream(w, r) {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		limit = 0
	}

	ch := eventstream.Open(r.Context(), w, s.registry, func(send eventstream.SendFunc, requestClose func()) func() {
		count := 0
		return s.every(s.cfg.TickInterval, func() {
			if limit > 0 && count >= limit {
				return
			}
			count++
			send(eventstream.Event{Event: "tick", Data: strconv.Itoa(count)})
			if limit > 0 && count >= limit {
				requestClose()
			}
		})
	}, s.streamOptions()...)
	ch.Wait()
}

func (s *Server) streamOptions() []eventstream.Option {
	return []eventstream.Option{
		eventstream.WithLogger(s.logger),
		eventstream.WithWriteTimeout(s.cfg.WriteTimeout),
	}
}

// prepareStream rejects requests that cannot carry an event stream.
func (s *Server) prepareStream(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		s.logger.Warn("event stream not acceptable", "accept", r.Header.Get("Accept"))
		http.Error(w, "Not acceptable", http.StatusNotAcceptable)
		return false
	}

	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return false
	}
	return true
}

// every calls fn on its own goroutine once per interval until the returned
// stop function is called. A non-positive interval never calls fn. stop
// waits for the goroutine to exit.
func (s *Server) every(interval time.Duration, fn func()) (stop func()) {
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
