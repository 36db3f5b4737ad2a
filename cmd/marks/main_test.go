package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()
	want := []string{"serve", "worker", "run", "migrate", "import", "enqueue"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestMigrateUpAndVersion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MARKS_DATABASE_URL", "sqlite://"+filepath.Join(dir, "marks.db"))
	envFile := filepath.Join(dir, "missing.env")

	out, err := execute(t, "migrate", "version", "--env-file", envFile)
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	if !strings.Contains(out, "no migrations applied") {
		t.Errorf("unexpected output on empty database: %q", out)
	}

	if _, err := execute(t, "migrate", "up", "--env-file", envFile); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	out, err = execute(t, "migrate", "version", "--env-file", envFile)
	if err != nil {
		t.Fatalf("migrate version: %v", err)
	}
	if !strings.Contains(out, "version 1 (dirty=false)") {
		t.Errorf("unexpected version output: %q", out)
	}
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"import without file", []string{"import", "--user", "1"}, "--file is required"},
		{"import without user", []string{"import", "--file", "bookmarks.yaml"}, "--user is required"},
		{"enqueue bad id", []string{"enqueue", "abc"}, "invalid bookmark id"},
		{"migrate down bad steps", []string{"migrate", "down", "zero"}, "invalid steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
