package main

import (
	"io"
	"strings"
	"testing"
)

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"migrate", "create-admin", "create-tenant"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v (%v)", name, cmd, err)
		}
	}

	// Flag validation runs before any configuration is loaded.
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"create-admin"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "--email") {
		t.Fatalf("expected missing email error, got %v", err)
	}
}
