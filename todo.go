package todostream

import "github.com/jpalmerr/todostream/internal/store"

// Todo is one item in the list.
type Todo struct {
	// ID uniquely identifies the todo within the list.
	ID string

	// Label is the text shown to the user.
	Label string

	// Completed reports whether the todo has been checked off.
	Completed bool
}

// ActionType names a change to the todo list.
type ActionType string

const (
	// ActionInit replaces the whole list.
	ActionInit ActionType = "init"

	// ActionAddTodo appends a todo. Ignored if the id already exists.
	ActionAddTodo ActionType = "add_todo"

	// ActionCompleteTodo marks a todo completed.
	ActionCompleteTodo ActionType = "complete_todo"

	// ActionUncompleteTodo clears a todo's completion.
	ActionUncompleteTodo ActionType = "uncomplete_todo"

	// ActionDeleteTodo removes a todo.
	ActionDeleteTodo ActionType = "delete_todo"
)

// String returns the wire name of the action type.
func (t ActionType) String() string {
	return string(t)
}

// Action describes one change to the todo list.
//
// Which fields are meaningful depends on Type: Todos for [ActionInit], ID and
// Label for [ActionAddTodo], ID alone for the rest.
type Action struct {
	Type  ActionType
	Todos []Todo
	ID    string
	Label string
}

// toStoreAction converts a public action to the store's representation.
func toStoreAction(a Action) store.Action {
	sa := store.Action{Type: store.ActionType(a.Type), ID: a.ID, Label: a.Label}
	if a.Type == ActionInit {
		sa.State = toStoreState(a.Todos)
	}
	return sa
}

// fromStoreAction converts a store action to the public type. Todos are
// copied so callers cannot mutate the store's state.
func fromStoreAction(a store.Action) Action {
	pa := Action{Type: ActionType(a.Type), ID: a.ID, Label: a.Label}
	if a.Type == store.ActionInit && a.State != nil {
		pa.Todos = fromStoreTodos(a.State.Todos)
	}
	return pa
}

func toStoreState(todos []Todo) *store.State {
	state := &store.State{Todos: make([]store.Todo, len(todos))}
	for i, t := range todos {
		state.Todos[i] = store.Todo{ID: t.ID, Label: t.Label, Completed: t.Completed}
	}
	return state
}

func fromStoreTodos(todos []store.Todo) []Todo {
	result := make([]Todo, len(todos))
	for i, t := range todos {
		result[i] = Todo{ID: t.ID, Label: t.Label, Completed: t.Completed}
	}
	return result
}
