package mux

import "testing"

func TestResolveMultiplexerPrefersTaskField(t *testing.T) {
	if got := ResolveMultiplexer("zellij", "tmux"); got != KindZellij {
		t.Errorf("ResolveMultiplexer = %q, want zellij", got)
	}
	if got := ResolveMultiplexer("", "tmux"); got != KindTmux {
		t.Errorf("ResolveMultiplexer = %q, want tmux (default)", got)
	}
}

func TestResolveSessionNameKeepsStored(t *testing.T) {
	m := NewManager()
	got := m.ResolveSessionName("grove-abc-existing", KindTmux, "abc", "existing")
	if got != "grove-abc-existing" {
		t.Errorf("ResolveSessionName = %q, want stored value preserved", got)
	}
}

func TestResolveSessionNameComputesWhenEmpty(t *testing.T) {
	m := NewManager()
	got := m.ResolveSessionName("", KindTmux, "abc123", "add-greet")
	want := "grove-abc123-add-greet"
	if got != want {
		t.Errorf("ResolveSessionName = %q, want %q", got, want)
	}
}
