// Package todostream serves a shared todo list that stays live in every
// connected browser.
//
// Every change to the list is an [Action]. Actions are applied in order by a
// single store, and each applied action is pushed to every open
// Server-Sent Events stream, so clients can replay the same reducer and stay
// in sync without polling.
//
// # Quick Start
//
// Create a TodoStream and start it with graceful shutdown:
//
//	ts, _ := todostream.New(
//	    todostream.WithTodos(todostream.Todo{ID: "1", Label: "Buy milk"}),
//	    todostream.WithShutdownSignals(syscall.SIGINT, syscall.SIGTERM),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	ts.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// TodoStream uses the functional options pattern for configuration:
//
//	ts, err := todostream.New(
//	    todostream.WithPort(9090),
//	    todostream.WithTitle("Groceries"),
//	    todostream.WithSeedFile("todos.yaml"),
//	    todostream.WithKeepAlive(30 * time.Second),
//	)
//
// # HTTP Surface
//
//   - GET /: the dashboard
//   - GET /api/todos: the current list as JSON
//   - POST /api/todos: form actions (intent, label, todo_id), answered with a redirect to /
//   - GET /api/sse: the action stream; the first event is an init snapshot
//   - GET /api/ticks: a counter stream, optionally ended after ?limit=N ticks
//
// # Architecture
//
// TodoStream consists of several internal packages (under internal/):
//
//   - internal/eventstream: SSE framing, channel lifecycle and the shutdown registry
//   - internal/store: the reducer and an in-memory store with pub/sub
//   - internal/seed: YAML seed files and a watcher that reloads them
//   - internal/server: HTTP server with the dashboard, actions and event streams
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package todostream
