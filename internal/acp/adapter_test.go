package acp

import (
	"strings"
	"testing"
)

func TestNewContentAdapterPicksClaudeCode(t *testing.T) {
	a := NewContentAdapter("/usr/local/bin/claude-code-acp")
	if _, ok := a.(claudeCodeAdapter); !ok {
		t.Errorf("expected claudeCodeAdapter, got %T", a)
	}
}

func TestNewContentAdapterDefaultsForOtherAgents(t *testing.T) {
	a := NewContentAdapter("/usr/local/bin/gemini-acp")
	if _, ok := a.(defaultAdapter); !ok {
		t.Errorf("expected defaultAdapter, got %T", a)
	}
}

func TestDefaultAdapterRendersTerminal(t *testing.T) {
	got := defaultAdapter{}.Render(ToolCallContent{IsTerminal: true, TerminalID: "t1"})
	if got != "[terminal t1]" {
		t.Errorf("got %q", got)
	}
}

func TestDefaultAdapterRendersNewFileAsFencedBlock(t *testing.T) {
	got := defaultAdapter{}.Render(ToolCallContent{IsDiff: true, DiffPath: "main.go", DiffNew: "package main\n"})
	want := "```go\npackage main\n\n```"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultAdapterRendersUnifiedDiff(t *testing.T) {
	old := "a\nb\nc\n"
	updated := "a\nx\nc\n"
	got := defaultAdapter{}.Render(ToolCallContent{IsDiff: true, DiffPath: "f.txt", DiffOld: old, DiffNew: updated})
	if got == "" {
		t.Fatal("expected non-empty diff")
	}
	wantSubstrings := []string{"- b", "+ x", "  a", "  c"}
	for _, s := range wantSubstrings {
		if !strings.Contains(got, s) {
			t.Errorf("expected diff to contain %q, got %q", s, got)
		}
	}
}

func TestClaudeCodeAdapterStripsClosedSystemReminder(t *testing.T) {
	text := "before<system-reminder>secret stuff</system-reminder>after"
	got := claudeCodeAdapter{}.Render(ToolCallContent{Text: text})
	if got != "beforeafter" {
		t.Errorf("got %q", got)
	}
}

func TestClaudeCodeAdapterLeavesUnclosedSystemReminder(t *testing.T) {
	text := "before <system-reminder>unclosed"
	got := claudeCodeAdapter{}.Render(ToolCallContent{Text: text})
	if got != text {
		t.Errorf("got %q, want input unchanged: %q", got, text)
	}
}

