// Package seed loads todo lists from YAML files and keeps a store in sync
// with a file on disk.
//
// A seed file looks like:
//
//	todos:
//	  - id: "1"
//	    label: Buy milk
//	  - id: "2"
//	    label: Walk the dog
//	    completed: true
//
// [Watcher] dispatches an init action built from the file when it starts and
// again whenever the file changes, replacing the whole list.
package seed

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/todostream/internal/store"
)

// Entry is one todo in a seed file.
type Entry struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	Completed bool   `yaml:"completed"`
}

// File is the top-level structure of a seed file.
type File struct {
	Todos []Entry `yaml:"todos"`
}

// Load reads and validates the seed file at path.
func Load(path string) (*store.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed file content. An empty document yields an empty list.
func Parse(data []byte) (*store.State, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}
	return f.State()
}

// State validates the entries and converts them to a store state.
func (f File) State() (*store.State, error) {
	state := &store.State{Todos: make([]store.Todo, 0, len(f.Todos))}
	seen := make(map[string]bool, len(f.Todos))

	var errs []error
	for i, e := range f.Todos {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("todos[%d]: id is required", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("todos[%d]: duplicate id %q", i, e.ID))
			continue
		}
		seen[e.ID] = true
		state.Todos = append(state.Todos, store.Todo{ID: e.ID, Label: e.Label, Completed: e.Completed})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return state, nil
}
