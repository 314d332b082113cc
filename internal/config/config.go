// Package config loads Grove's global config.toml: the one file that is
// not scoped to a project. It uses a TOML-struct-tag idiom
// (BurntSushi/toml) rather than a YAML/viper stack, since nothing
// else in this module needs layered config sources.
package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/grove-run/grove/internal/fsstore"
	"github.com/grove-run/grove/internal/groveerr"
)

// Config is the global, process-wide configuration loaded from
// <root>/config.toml. Readers tolerate a missing file (see Load).
type Config struct {
	DefaultMultiplexer  string            `toml:"default_multiplexer"`
	ACPAgentCommand     string            `toml:"acp_agent_command"`
	ACPAgentArgs        []string          `toml:"acp_agent_args"`
	LayoutPresets       map[string]string `toml:"layout_presets"`
	SocketBudgetFallback int              `toml:"socket_budget_fallback"`
}

// Default returns the built-in configuration used when no config.toml
// exists yet.
func Default() *Config {
	return &Config{
		DefaultMultiplexer:   "tmux",
		ACPAgentCommand:      "claude-code-acp",
		LayoutPresets:        map[string]string{},
		SocketBudgetFallback: 100,
	}
}

// Load reads config.toml at path. A missing file is not an error — it
// yields Default(), since config.toml is a cache of user preference, not a
// contract (per the storage layer's general read policy).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, groveerr.Wrap(groveerr.KindIO, err, "reading config %s", path)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, groveerr.Wrap(groveerr.KindTomlParse, err, "parsing config %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	return fsstore.AtomicWriteTOML(path, cfg)
}
