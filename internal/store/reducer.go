package store

// Reduce applies action to state and returns the resulting state.
//
// Reduce is pure and never modifies state. When the action has no effect
// (an unknown id, a todo that is already in the requested completion
// state, a duplicate id on add, an unknown action type) Reduce returns
// state itself, so callers can detect a no-op with a pointer comparison.
func Reduce(state *State, action Action) *State {
	switch action.Type {
	case ActionInit:
		if action.State == nil {
			return state
		}
		return action.State.Clone()

	case ActionAddTodo:
		if action.ID == "" || indexOf(state, action.ID) >= 0 {
			return state
		}
		todos := make([]Todo, len(state.Todos), len(state.Todos)+1)
		copy(todos, state.Todos)
		todos = append(todos, Todo{ID: action.ID, Label: action.Label})
		return &State{Todos: todos}

	case ActionCompleteTodo:
		return setCompleted(state, action.ID, true)

	case ActionUncompleteTodo:
		return setCompleted(state, action.ID, false)

	case ActionDeleteTodo:
		i := indexOf(state, action.ID)
		if i < 0 {
			return state
		}
		todos := make([]Todo, 0, len(state.Todos)-1)
		todos = append(todos, state.Todos[:i]...)
		todos = append(todos, state.Todos[i+1:]...)
		return &State{Todos: todos}

	default:
		return state
	}
}

func setCompleted(state *State, id string, completed bool) *State {
	i := indexOf(state, id)
	if i < 0 || state.Todos[i].Completed == completed {
		return state
	}
	next := state.Clone()
	next.Todos[i].Completed = completed
	return next
}

func indexOf(state *State, id string) int {
	for i, t := range state.Todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
