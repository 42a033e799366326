package todostream

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// tsConfig holds mutable state during TodoStream construction.
type tsConfig struct {
	title           string
	port            int
	todos           []Todo
	seedFile        string
	keepAlive       time.Duration
	retry           time.Duration
	tickInterval    time.Duration
	writeTimeout    time.Duration
	logger          *slog.Logger
	actionCallbacks []func(Action)
	shutdownSignals []os.Signal
}

// Option is a function that configures a [TodoStream] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*tsConfig) error

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *tsConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the TodoStream instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *tsConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "Todos".
func WithTitle(title string) Option {
	return func(cfg *tsConfig) error {
		cfg.title = title
		return nil
	}
}

// WithTodos adds todos to the initial list.
//
// Can be called multiple times; todos are appended in order. Every todo needs
// a non-empty ID, and IDs must be unique across all calls.
//
// Example:
//
//	ts, err := todostream.New(
//	    todostream.WithTodos(
//	        todostream.Todo{ID: "1", Label: "Buy milk"},
//	        todostream.Todo{ID: "2", Label: "Walk the dog", Completed: true},
//	    ),
//	)
func WithTodos(todos ...Todo) Option {
	return func(cfg *tsConfig) error {
		for i, t := range todos {
			if t.ID == "" {
				return fmt.Errorf("todo %d: id cannot be empty", i)
			}
		}
		cfg.todos = append(cfg.todos, todos...)
		return nil
	}
}

// WithSeedFile loads the list from a YAML file when [TodoStream.Start] runs
// and reloads it whenever the file changes. The file replaces any todos
// given with [WithTodos].
//
// Returns an error if path is empty.
func WithSeedFile(path string) Option {
	return func(cfg *tsConfig) error {
		if path == "" {
			return errors.New("seed file path cannot be empty")
		}
		cfg.seedFile = path
		return nil
	}
}

// WithKeepAlive sets how often an idle /api/sse stream receives a comment
// frame. Zero disables keep-alives. Defaults to 15 seconds.
//
// Returns an error if the duration is negative.
func WithKeepAlive(d time.Duration) Option {
	return func(cfg *tsConfig) error {
		if d < 0 {
			return errors.New("keep-alive interval cannot be negative")
		}
		cfg.keepAlive = d
		return nil
	}
}

// WithRetry sets the reconnection delay advertised to clients in the first
// frame of /api/sse. Zero omits it. Defaults to 2 seconds.
//
// Returns an error if the duration is negative.
func WithRetry(d time.Duration) Option {
	return func(cfg *tsConfig) error {
		if d < 0 {
			return errors.New("retry delay cannot be negative")
		}
		cfg.retry = d
		return nil
	}
}

// WithTickInterval sets the interval of the /api/ticks counter stream.
// Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithTickInterval(d time.Duration) Option {
	return func(cfg *tsConfig) error {
		if d <= 0 {
			return errors.New("tick interval must be positive")
		}
		cfg.tickInterval = d
		return nil
	}
}

// WithWriteTimeout bounds each frame write to a client. A client that cannot
// take a frame within d is disconnected. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *tsConfig) error {
		if d <= 0 {
			return errors.New("write timeout must be positive")
		}
		cfg.writeTimeout = d
		return nil
	}
}

// WithActionCallback registers a function to be called for every applied action.
//
// The first call after [TodoStream.Start] receives the current list as an
// [ActionInit]; later calls receive each action that changed the list, in
// the order it was applied. Actions that change nothing are not reported.
//
// Multiple callbacks may be registered by calling WithActionCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks run synchronously while the list is locked. They must
// be non-blocking and must not call [TodoStream.Dispatch]; dispatch long-running
// work to a separate goroutine.
//
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	ts, err := todostream.New(
//	    todostream.WithActionCallback(func(a todostream.Action) {
//	        if a.Type == todostream.ActionDeleteTodo {
//	            log.Printf("todo %s deleted", a.ID)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithActionCallback(cb func(Action)) Option {
	return func(cfg *tsConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.actionCallbacks = append(cfg.actionCallbacks, cb)
		return nil
	}
}

// WithShutdownSignals closes every open event stream as soon as one of sigs
// is delivered, without waiting for the context passed to
// [TodoStream.Start] to be cancelled.
//
// Example:
//
//	ts, err := todostream.New(
//	    todostream.WithShutdownSignals(syscall.SIGINT, syscall.SIGTERM),
//	)
func WithShutdownSignals(sigs ...os.Signal) Option {
	return func(cfg *tsConfig) error {
		cfg.shutdownSignals = append(cfg.shutdownSignals, sigs...)
		return nil
	}
}
