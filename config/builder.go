package config

import (
	"github.com/jpalmerr/todostream"
)

// BuildOptions converts parsed configuration into SDK options for
// [todostream.New].
//
// The inline todo list is only used when no seed file is configured; a seed
// file replaces the list as soon as the server starts.
func BuildOptions(cfg *Config) []todostream.Option {
	opts := []todostream.Option{
		todostream.WithPort(cfg.Port),
		todostream.WithKeepAlive(cfg.KeepAlive.Duration()),
		todostream.WithRetry(cfg.Retry.Duration()),
		todostream.WithTickInterval(cfg.TickInterval.Duration()),
	}

	if cfg.WriteTimeout > 0 {
		opts = append(opts, todostream.WithWriteTimeout(cfg.WriteTimeout.Duration()))
	}

	if cfg.Title != "" {
		opts = append(opts, todostream.WithTitle(cfg.Title))
	}

	if cfg.SeedFile != "" {
		opts = append(opts, todostream.WithSeedFile(cfg.SeedFile))
	} else if len(cfg.Todos) > 0 {
		opts = append(opts, todostream.WithTodos(buildTodos(cfg.Todos)...))
	}

	return opts
}

// buildTodos converts TodoConfig entries to SDK todos.
func buildTodos(todos []TodoConfig) []todostream.Todo {
	result := make([]todostream.Todo, len(todos))
	for i, tc := range todos {
		result[i] = todostream.Todo{ID: tc.ID, Label: tc.Label, Completed: tc.Completed}
	}
	return result
}
