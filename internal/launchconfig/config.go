// Package launchconfig parses a VS Code-style launch.json file: the
// external collaborator the session façade consumes but does not implement
// itself (spec §6).
package launchconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dapgui/dapgui/internal/dap/dapterr"
)

// PathMapping forwards a local/remote source root pair verbatim.
type PathMapping struct {
	LocalRoot  string `json:"localRoot"`
	RemoteRoot string `json:"remoteRoot"`
}

// ConnectSpec is the debuggee endpoint for an "attach" configuration —
// distinct from the adapter endpoint the session façade dials.
type ConnectSpec struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JumpHost optionally routes the adapter connection through an SSH tunnel
// (internal/sshtunnel); not part of stock VS Code launch.json but a
// recognized extension field for reaching adapters on remote hosts.
type JumpHost struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
	UseAgent       bool   `json:"use_agent,omitempty"`
	KnownHostsPath string `json:"known_hosts_path,omitempty"`
}

// Configuration is one entry of the `configurations` array.
type Configuration struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Request      string        `json:"request"`
	Program      string        `json:"program,omitempty"`
	Connect      *ConnectSpec  `json:"connect,omitempty"`
	JustMyCode   *bool         `json:"justMyCode,omitempty"`
	PathMappings []PathMapping `json:"pathMappings,omitempty"`
	JumpHost     *JumpHost     `json:"jump_host,omitempty"`
}

// File is the top-level shape of a launch.json document.
type File struct {
	Configurations []Configuration `json:"configurations"`
}

// Load reads and parses a launch configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &dapterr.ConfigInvalidErr{Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &dapterr.ConfigInvalidErr{Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if len(f.Configurations) == 0 {
		return nil, &dapterr.ConfigInvalidErr{Reason: fmt.Sprintf("%s: no configurations", path)}
	}
	return &f, nil
}

// Select returns the configuration named name, or the first configuration
// if name is empty. Fails if name is non-empty and not found.
func (f *File) Select(name string) (Configuration, error) {
	if name == "" {
		return f.Configurations[0], nil
	}
	for _, c := range f.Configurations {
		if c.Name == name {
			return c, nil
		}
	}
	return Configuration{}, &dapterr.ConfigInvalidErr{Reason: fmt.Sprintf("no configuration named %q", name)}
}
