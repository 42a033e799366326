package seed

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{
			name:  "empty document",
			input: "",
			want:  []string{},
		},
		{
			name: "two todos",
			input: `todos:
  - id: "1"
    label: Buy milk
  - id: "2"
    label: Walk the dog
    completed: true
`,
			want: []string{"1", "2"},
		},
		{
			name: "missing id",
			input: `todos:
  - label: Buy milk
`,
			wantErr: "id is required",
		},
		{
			name: "duplicate id",
			input: `todos:
  - id: a
    label: one
  - id: a
    label: two
`,
			wantErr: `duplicate id "a"`,
		},
		{
			name:    "invalid yaml",
			input:   "todos: [",
			wantErr: "parsing seed file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := Parse([]byte(tt.input))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if state.Todos == nil {
				t.Fatal("Parse() returned nil todos slice")
			}
			if len(state.Todos) != len(tt.want) {
				t.Fatalf("Parse() = %d todos, want %d", len(state.Todos), len(tt.want))
			}
			for i, id := range tt.want {
				if state.Todos[i].ID != id {
					t.Errorf("todo %d id = %q, want %q", i, state.Todos[i].ID, id)
				}
			}
		})
	}
}

func TestParse_PreservesFields(t *testing.T) {
	state, err := Parse([]byte("todos:\n  - id: x\n    label: Buy milk\n    completed: true\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := state.Todos[0]
	if got.ID != "x" || got.Label != "Buy milk" || !got.Completed {
		t.Errorf("Parse() todo = %+v", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load() error = %v, want a not-exist error", err)
	}
}
