package store

import (
	"encoding/json"
	"fmt"
)

// Todo is a single item on the list.
type Todo struct {
	// ID uniquely identifies the todo within a [State].
	ID string `json:"id"`

	// Label is the text shown to the user.
	Label string `json:"label"`

	// Completed reports whether the todo has been ticked off.
	Completed bool `json:"completed"`
}

// State is an immutable snapshot of the todo list.
//
// A State must never be modified once it has been handed to a [Store]:
// listeners and HTTP handlers read it without locking.
type State struct {
	Todos []Todo `json:"todos"`
}

// EmptyState returns a State with no todos.
func EmptyState() *State {
	return &State{Todos: []Todo{}}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	todos := make([]Todo, len(s.Todos))
	copy(todos, s.Todos)
	return &State{Todos: todos}
}

// ActionType discriminates the variants of [Action].
type ActionType string

const (
	ActionInit           ActionType = "init"
	ActionAddTodo        ActionType = "add_todo"
	ActionCompleteTodo   ActionType = "complete_todo"
	ActionUncompleteTodo ActionType = "uncomplete_todo"
	ActionDeleteTodo     ActionType = "delete_todo"
)

// Action is a single change to the todo list.
//
// Only the fields relevant to Type are meaningful: State for init, ID and
// Label for add_todo, ID for the rest. Use the constructor functions rather
// than building Actions by hand.
//
// On the wire an Action is encoded as {"type": ..., "payload": ...}.
type Action struct {
	Type  ActionType
	State *State
	ID    string
	Label string
}

// Init returns an action replacing the whole list with s.
func Init(s *State) Action {
	return Action{Type: ActionInit, State: s}
}

// AddTodo returns an action appending a new, uncompleted todo.
func AddTodo(id, label string) Action {
	return Action{Type: ActionAddTodo, ID: id, Label: label}
}

// CompleteTodo returns an action marking the todo with id as completed.
func CompleteTodo(id string) Action {
	return Action{Type: ActionCompleteTodo, ID: id}
}

// UncompleteTodo returns an action marking the todo with id as not completed.
func UncompleteTodo(id string) Action {
	return Action{Type: ActionUncompleteTodo, ID: id}
}

// DeleteTodo returns an action removing the todo with id.
func DeleteTodo(id string) Action {
	return Action{Type: ActionDeleteTodo, ID: id}
}

type idPayload struct {
	ID string `json:"id"`
}

type addPayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (a Action) MarshalJSON() ([]byte, error) {
	var payload any
	switch a.Type {
	case ActionInit:
		s := a.State
		if s == nil {
			s = EmptyState()
		}
		payload = s
	case ActionAddTodo:
		payload = addPayload{ID: a.ID, Label: a.Label}
	case ActionCompleteTodo, ActionUncompleteTodo, ActionDeleteTodo:
		payload = idPayload{ID: a.ID}
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: a.Type, Payload: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Action) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	switch env.Type {
	case ActionInit:
		var s State
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			return fmt.Errorf("init payload: %w", err)
		}
		if s.Todos == nil {
			s.Todos = []Todo{}
		}
		*a = Init(&s)
	case ActionAddTodo:
		var p addPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("add_todo payload: %w", err)
		}
		*a = AddTodo(p.ID, p.Label)
	case ActionCompleteTodo, ActionUncompleteTodo, ActionDeleteTodo:
		var p idPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("%s payload: %w", env.Type, err)
		}
		*a = Action{Type: env.Type, ID: p.ID}
	default:
		return fmt.Errorf("unknown action type %q", env.Type)
	}
	return nil
}

// Listener receives every action applied to a [Store].
type Listener func(Action)

// Store defines the interface for dispatching actions and subscribing to them.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// State returns the current snapshot. The returned value must not be
	// modified.
	State() *State

	// Dispatch applies an action. Actions that do not change the state
	// (for example deleting an unknown id) are dropped without notifying
	// anyone. Reports whether the state changed.
	Dispatch(action Action) bool

	// Subscribe registers listener. Before Subscribe returns, listener
	// receives an init action carrying the current state; after that it
	// receives every applied action in order until unsubscribe is called.
	// unsubscribe is idempotent and may be called from inside listener.
	//
	// Once unsubscribe returns, no later dispatch reaches listener, and a
	// call made from inside a listener also skips the rest of the current
	// pass. A call that races a delivery already under way on another
	// goroutine cannot recall it: that one action may still arrive after
	// unsubscribe has returned.
	Subscribe(listener Listener) (unsubscribe func())
}
