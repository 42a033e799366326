package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jpalmerr/todostream"
)

func main() {
	ts, err := todostream.New(
		todostream.WithTitle("Chores"),
		todostream.WithPort(8080),
		todostream.WithTodos(
			todostream.Todo{ID: "dishes", Label: "Do the dishes"},
			todostream.Todo{ID: "bins", Label: "Take out the bins"},
		),
		todostream.WithActionCallback(func(a todostream.Action) {
			slog.Info("list changed", "action", a.Type.String(), "id", a.ID)
		}),
	)
	if err != nil {
		slog.Error("failed to create todostream", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   todostream Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in two browser windows   ║")
	fmt.Println("  ║   A chore bot edits the list every few seconds        ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go RunChoreBot(ctx, ts)

	if err := ts.Start(ctx); err != nil {
		slog.Error("todostream error", "error", err)
		os.Exit(1)
	}
}
