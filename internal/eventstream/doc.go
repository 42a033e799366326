// Package eventstream turns an HTTP response into a long-lived stream of
// Server-Sent Events.
//
// This package is internal to todostream and owns the only part of the
// server with real lifecycle risk: every stream must release its
// subscriptions exactly once, whether it ends because the client went away,
// because the process is shutting down, or because its producer asked for it.
//
// The main components are:
//
//   - [Event] and [Format]: the text/event-stream wire format
//   - [Channel]: one client's stream, opened with [Open]
//   - [Registry]: the set of open channels, drained on process termination
//
// A handler opens a channel with an [Initializer] that subscribes to
// whatever source it streams from and returns the matching cleanup:
//
//	ch := eventstream.Open(r.Context(), w, registry, func(send eventstream.SendFunc, requestClose func()) func() {
//	    return st.Subscribe(func(a store.Action) {
//	        send(eventstream.Event{Data: encode(a)})
//	    })
//	})
//	ch.Wait()
package eventstream
