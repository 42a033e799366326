// Package server provides the HTTP server for the todo dashboard, its
// action surface and its event streams.
//
// This package is internal to todostream and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: JSON snapshot at GET "/api/todos"
//   - Actions: form-encoded submissions at POST "/api/todos"
//   - Server-Sent Events: every applied action at "/api/sse", and a demo
//     counter at "/api/ticks"
//
// Event streams are built on the eventstream package and are closed by
// whichever comes first: the client disconnecting, the server context being
// cancelled, or the shared registry being drained by a termination signal.
//
// Users of the todostream library should not need to interact with this
// package directly. The server is started automatically by [todostream.TodoStream.Start].
package server
