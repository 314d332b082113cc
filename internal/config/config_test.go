package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultMultiplexer != "tmux" {
		t.Errorf("DefaultMultiplexer = %q, want tmux", cfg.DefaultMultiplexer)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.DefaultMultiplexer = "zellij"
	cfg.ACPAgentArgs = []string{"--flag"}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DefaultMultiplexer != "zellij" {
		t.Errorf("DefaultMultiplexer = %q, want zellij", loaded.DefaultMultiplexer)
	}
	if len(loaded.ACPAgentArgs) != 1 || loaded.ACPAgentArgs[0] != "--flag" {
		t.Errorf("ACPAgentArgs = %v", loaded.ACPAgentArgs)
	}
}
