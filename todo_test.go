package todostream

import (
	"testing"

	"github.com/jpalmerr/todostream/internal/store"
)

func TestActionConversion_RoundTrip(t *testing.T) {
	tests := []Action{
		{Type: ActionInit, Todos: []Todo{{ID: "1", Label: "milk", Completed: true}}},
		{Type: ActionAddTodo, ID: "2", Label: "eggs"},
		{Type: ActionCompleteTodo, ID: "2"},
		{Type: ActionUncompleteTodo, ID: "2"},
		{Type: ActionDeleteTodo, ID: "2"},
	}

	for _, want := range tests {
		t.Run(want.Type.String(), func(t *testing.T) {
			got := fromStoreAction(toStoreAction(want))
			if got.Type != want.Type || got.ID != want.ID || got.Label != want.Label {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
			if len(got.Todos) != len(want.Todos) {
				t.Fatalf("round trip todos = %+v, want %+v", got.Todos, want.Todos)
			}
			for i := range want.Todos {
				if got.Todos[i] != want.Todos[i] {
					t.Errorf("todo %d = %+v, want %+v", i, got.Todos[i], want.Todos[i])
				}
			}
		})
	}
}

func TestFromStoreAction_CopiesTodos(t *testing.T) {
	state := &store.State{Todos: []store.Todo{{ID: "1", Label: "milk"}}}

	a := fromStoreAction(store.Init(state))
	a.Todos[0].Label = "mutated"

	if state.Todos[0].Label != "milk" {
		t.Error("mutating a public action changed the store state")
	}
}

func TestDispatch_InitReplacesList(t *testing.T) {
	ts, err := New(WithTodos(Todo{ID: "1", Label: "old"}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts.Dispatch(Action{Type: ActionInit, Todos: []Todo{{ID: "9", Label: "new"}}})

	todos := ts.Todos()
	if len(todos) != 1 || todos[0].ID != "9" {
		t.Errorf("Todos() = %+v, want only the new todo", todos)
	}
}
