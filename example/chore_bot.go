package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jpalmerr/todostream"
)

var chores = []string{
	"Water the plants",
	"Hoover the stairs",
	"Feed the cat",
	"Change the bedsheets",
	"Clean the windows",
}

// RunChoreBot edits the list every 5-15 seconds until ctx is cancelled:
// it adds a chore, ticks off an open one, or clears away a finished one.
// Every change shows up in all open dashboards.
func RunChoreBot(ctx context.Context, ts *todostream.TodoStream) {
	n := 0
	for {
		delay := time.Duration(5+rand.Intn(11)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		var open, done []todostream.Todo
		for _, t := range ts.Todos() {
			if t.Completed {
				done = append(done, t)
			} else {
				open = append(open, t)
			}
		}

		var action todostream.Action
		switch {
		case len(done) > 0 && rand.Intn(3) == 0:
			action = todostream.Action{Type: todostream.ActionDeleteTodo, ID: done[rand.Intn(len(done))].ID}
		case len(open) > 0 && rand.Intn(2) == 0:
			action = todostream.Action{Type: todostream.ActionCompleteTodo, ID: open[rand.Intn(len(open))].ID}
		default:
			n++
			action = todostream.Action{
				Type:  todostream.ActionAddTodo,
				ID:    fmt.Sprintf("bot-%d", n),
				Label: chores[rand.Intn(len(chores))],
			}
		}

		if !ts.Dispatch(action) {
			slog.Debug("chore bot action changed nothing", "action", action.Type.String(), "id", action.ID)
		}
	}
}
