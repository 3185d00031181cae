// Package dapconfig loads the optional ~/.dapgui.toml preferences file,
// adapted from the teacher's internal/core/config package but trimmed to
// what a DAP client actually needs: no process/database/SSH-server
// bookkeeping, just adapter connection defaults and jump-host presets.
package dapconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const FileName = ".dapgui.toml"

// Config is the on-disk preferences shape.
type Config struct {
	// Adapter holds defaults for dialing the debug adapter.
	Adapter AdapterConfig `toml:"adapter,omitempty"`

	// Output controls the output sink's retained history.
	Output OutputConfig `toml:"output,omitempty"`

	// JumpHosts are named SSH jump-host presets. A launch.json jump_host
	// entry has no field that names a preset, and nothing in this module
	// resolves them; they are parsed and kept only.
	JumpHosts map[string]JumpHostPreset `toml:"jump_hosts,omitempty"`
}

// AdapterConfig carries the default adapter endpoint and handshake timeout.
type AdapterConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	HandshakeTimeout int    `toml:"handshake_timeout_seconds"`
}

// OutputConfig holds the sink's ring-buffer size and rate-limit settings.
// cmd/dapgui applies BufferSize only; RateLimitPerSec and RateLimitBurst are
// parsed but not applied anywhere in this module.
type OutputConfig struct {
	BufferSize        int     `toml:"buffer_size"`
	RateLimitPerSec   float64 `toml:"rate_limit_per_sec"`
	RateLimitBurst    int     `toml:"rate_limit_burst"`
}

// JumpHostPreset mirrors launchconfig.JumpHost for reuse across configs.
type JumpHostPreset struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	User           string `toml:"user"`
	PrivateKeyPath string `toml:"private_key_path,omitempty"`
	UseAgent       bool   `toml:"use_agent,omitempty"`
	KnownHostsPath string `toml:"known_hosts_path,omitempty"`
}

// HandshakeTimeoutDuration converts the configured seconds to a Duration,
// defaulting to 30s when unset.
func (a AdapterConfig) HandshakeTimeoutDuration() time.Duration {
	if a.HandshakeTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.HandshakeTimeout) * time.Second
}

// Default returns the built-in defaults used when no preferences file
// exists.
func Default() *Config {
	return &Config{
		Adapter: AdapterConfig{
			Host:             "127.0.0.1",
			Port:             5678,
			HandshakeTimeout: 30,
		},
		Output: OutputConfig{
			BufferSize:      1000,
			RateLimitPerSec: 0, // unlimited by default
		},
		JumpHosts: make(map[string]JumpHostPreset),
	}
}

// Load reads ~/.dapgui.toml, falling back to Default() if it doesn't exist.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Default(), nil
	}
	path := filepath.Join(home, FileName)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
