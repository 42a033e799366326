package todostream

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jpalmerr/todostream/dashboard"
	"github.com/jpalmerr/todostream/internal/eventstream"
	"github.com/jpalmerr/todostream/internal/seed"
	"github.com/jpalmerr/todostream/internal/server"
	"github.com/jpalmerr/todostream/internal/store"
)

const (
	defaultPort         = 8080
	defaultKeepAlive    = 15 * time.Second
	defaultRetry        = 2 * time.Second
	defaultTickInterval = time.Second
	defaultWriteTimeout = 5 * time.Second
)

// TodoStream serves a shared todo list and pushes every change to connected
// browsers over Server-Sent Events.
//
// TodoStream owns the list and, while running, the registry of open event
// streams and the HTTP server. It is created using [New] with functional options and started with
// [TodoStream.Start].
//
// The typical lifecycle is:
//
//	ts, err := todostream.New(todostream.WithTodos(todostream.Todo{ID: "1", Label: "Buy milk"}))
//	if err != nil {
//	    slog.Error("failed to create todostream", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	ts.Start(ctx) // blocks until context cancelled
//
// The list can be changed before and while Start runs with [TodoStream.Dispatch].
type TodoStream struct {
	title           string
	port            int
	keepAlive       time.Duration
	retry           time.Duration
	tickInterval    time.Duration
	writeTimeout    time.Duration
	seedFile        string
	logger          *slog.Logger
	actionCallbacks []func(Action)
	shutdownSignals []os.Signal

	store *store.MemoryStore
}

// New creates a new [TodoStream] instance with the given options.
//
// All options have sensible defaults:
//   - Port: 8080
//   - Keep-alive interval: 15 seconds
//   - Reconnection delay advertised to clients: 2 seconds
//   - Tick interval of the /api/ticks demo stream: 1 second
//   - Per-frame write timeout: 5 seconds
//
// Returns an error if any option is invalid.
//
// Example:
//
//	ts, err := todostream.New(
//	    todostream.WithPort(9090),
//	    todostream.WithSeedFile("todos.yaml"),
//	)
func New(opts ...Option) (*TodoStream, error) {
	cfg := &tsConfig{
		port:         defaultPort,
		keepAlive:    defaultKeepAlive,
		retry:        defaultRetry,
		tickInterval: defaultTickInterval,
		writeTimeout: defaultWriteTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// validate todo id uniqueness (actions address todos by id)
	seen := make(map[string]bool, len(cfg.todos))
	for _, t := range cfg.todos {
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate todo id: %q", t.ID)
		}
		seen[t.ID] = true
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	todoStore := store.NewMemoryStore()
	if len(cfg.todos) > 0 {
		todoStore.Dispatch(store.Init(toStoreState(cfg.todos)))
	}

	return &TodoStream{
		title:           cfg.title,
		port:            cfg.port,
		keepAlive:       cfg.keepAlive,
		retry:           cfg.retry,
		tickInterval:    cfg.tickInterval,
		writeTimeout:    cfg.writeTimeout,
		seedFile:        cfg.seedFile,
		logger:          logger,
		actionCallbacks: cfg.actionCallbacks,
		shutdownSignals: cfg.shutdownSignals,
		store:           todoStore,
	}, nil
}

// Start serves the dashboard and its event streams.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The seed file, if configured, replaces the list and is watched for changes
//   - The HTTP server starts on the configured port
//   - Every applied action is passed to the registered action callbacks
//   - The dashboard is available at http://localhost:<port>
//
// When ctx is cancelled, or one of the signals registered with
// [WithShutdownSignals] arrives, every open event stream is closed before the
// HTTP server drains.
//
// Returns nil on graceful shutdown. Returns an error if the seed file cannot
// be loaded or the HTTP server fails to start.
func (ts *TodoStream) Start(ctx context.Context) error {
	ts.logger.Info("todostream starting", "todo_count", len(ts.store.State().Todos))
	ts.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", ts.port))

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// each run gets its own registry; a drained registry stays frozen
	registry := eventstream.NewRegistry(ts.logger)
	if len(ts.shutdownSignals) > 0 {
		stopSignals := registry.NotifySignals(ts.shutdownSignals...)
		defer stopSignals()
	}

	// the first call receives the current list as an init action
	if len(ts.actionCallbacks) > 0 {
		unsubscribe := ts.store.Subscribe(func(a store.Action) {
			publicAction := fromStoreAction(a)
			for _, cb := range ts.actionCallbacks {
				invokeCallbackSafe(cb, publicAction, ts.logger)
			}
		})
		defer unsubscribe()
	}

	var watcher *seed.Watcher
	if ts.seedFile != "" {
		watcher = seed.NewWatcher(ts.seedFile, ts.store, ts.logger)
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to load seed file: %w", err)
		}
	}
	waitWatcher := func() {
		if watcher != nil {
			watcher.Wait()
		}
	}

	httpServer := server.NewServer(ts.store, registry, server.Config{
		Port:         ts.port,
		Assets:       dashboard.Assets,
		Title:        ts.title,
		KeepAlive:    ts.keepAlive,
		Retry:        ts.retry,
		TickInterval: ts.tickInterval,
		WriteTimeout: ts.writeTimeout,
	}, ts.logger)
	if err := httpServer.Start(ctx); err != nil {
		cancel()
		waitWatcher()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	<-httpServer.Stopped()
	waitWatcher()
	ts.logger.Info("todostream stopped")
	return nil
}

// Dispatch applies an action to the list and notifies every connected
// client. Returns false if the action changed nothing (for example adding a
// duplicate id or completing an unknown todo); no notification is sent then.
//
// Dispatch is safe to call from any goroutine, before or during Start. It
// must not be called from an action callback.
func (ts *TodoStream) Dispatch(a Action) bool {
	return ts.store.Dispatch(toStoreAction(a))
}

// Todos returns a copy of the current list.
func (ts *TodoStream) Todos() []Todo {
	return fromStoreTodos(ts.store.State().Todos)
}

// Port returns the configured HTTP port for the dashboard server.
func (ts *TodoStream) Port() int {
	return ts.port
}

// Title returns the configured dashboard title.
func (ts *TodoStream) Title() string {
	return ts.title
}

// invokeCallbackSafe calls an action callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Action), action Action, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("action callback panicked",
				"panic", r,
				"action", action.Type.String(),
			)
		}
	}()
	cb(action)
}
