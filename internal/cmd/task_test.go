package cmd

import "testing"

func TestTaskCommandRegistered(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Use == "task" {
			found = true
			break
		}
	}
	if !found {
		t.Error("task command not found on rootCmd")
	}
}

func TestTaskSubcommandsRegistered(t *testing.T) {
	want := []string{"create", "list", "archive", "recover", "merge", "sync", "reset", "clean"}
	for _, name := range want {
		found := false
		for _, c := range taskCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not found on task command", name)
		}
	}
}

func TestTaskCreateRequiresExactlyOneArg(t *testing.T) {
	if err := taskCreateCmd.Args(taskCreateCmd, []string{}); err == nil {
		t.Error("create should require exactly 1 argument")
	}
	if err := taskCreateCmd.Args(taskCreateCmd, []string{"add login flow"}); err != nil {
		t.Errorf("create should accept 1 argument: %v", err)
	}
}

func TestParseMergeMethodRejectsUnknown(t *testing.T) {
	if _, err := parseMergeMethod("rebase-onto-mars"); err == nil {
		t.Fatal("expected error for unknown merge method")
	}
}

func TestParseMergeMethodAcceptsKnownValues(t *testing.T) {
	if _, err := parseMergeMethod("squash"); err != nil {
		t.Errorf("squash: %v", err)
	}
	if _, err := parseMergeMethod("merge_commit"); err != nil {
		t.Errorf("merge_commit: %v", err)
	}
}
