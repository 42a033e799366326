// Package store provides the todo list state and its publish/subscribe
// mechanism.
//
// This package is internal to todostream. State is immutable: every applied
// [Action] produces a new [State] value through [Reduce], and listeners are
// told about each applied action so connected clients can replay it.
//
// The main components are:
//
//   - [Store]: Interface defining dispatch and subscription operations
//   - [MemoryStore]: In-memory implementation of Store
//   - [Reduce]: The pure state transition function
//   - [Action]: The closed set of state changes (init, add, complete,
//     uncomplete, delete)
//
// A new subscriber is handed an init action carrying the full current state
// before it sees anything else, so a client that reconnects always starts
// from a fresh snapshot.
package store
