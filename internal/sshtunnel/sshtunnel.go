// Package sshtunnel dials a debug adapter reachable only from behind a jump
// host. It is adapted from the teacher's internal/core/ssh package: the
// same auth-method resolution and known_hosts handling, trimmed to a single
// outbound Dial (no interactive shell, no PTY, no session log rotation —
// this package only ever forwards one TCP stream to the adapter).
package sshtunnel

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/dapgui/dapgui/internal/launchconfig"
)

// Config mirrors launchconfig.JumpHost; kept distinct so this package
// doesn't force every caller to depend on launchconfig's JSON tags.
type Config struct {
	Host           string
	Port           int
	User           string
	PrivateKeyPath string
	UseAgent       bool
	KnownHostsPath string
	ConnectTimeout time.Duration
}

// FromLaunchConfig converts a parsed jump_host extension field.
func FromLaunchConfig(j launchconfig.JumpHost) Config {
	return Config{
		Host:           j.Host,
		Port:           j.Port,
		User:           j.User,
		PrivateKeyPath: j.PrivateKeyPath,
		UseAgent:       j.UseAgent,
		KnownHostsPath: j.KnownHostsPath,
	}
}

// Tunnel is a live SSH connection used to reach the adapter.
type Tunnel struct {
	client *ssh.Client
	log    *slog.Logger
}

// Dial connects to the jump host described by cfg.
func Dial(cfg Config, logger *slog.Logger) (*Tunnel, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hostKeyCallback, err := knownHostsCallback(cfg.KnownHostsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("known_hosts callback: %w", err)
	}

	auth, err := authMethod(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve auth method: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dial jump host %s: %w", addr, err)
	}

	logger.Info("ssh tunnel established", "jump_host", addr, "user", cfg.User)
	return &Tunnel{client: client, log: logger}, nil
}

// Dialer returns a transport.Dialer that opens addr through this tunnel
// instead of directly from this process.
func (t *Tunnel) Dialer() func(addr string) (net.Conn, error) {
	return func(addr string) (net.Conn, error) {
		return t.client.Dial("tcp", addr)
	}
}

// Close closes the underlying SSH client, tearing down any connections
// dialed through it.
func (t *Tunnel) Close() error {
	return t.client.Close()
}

func authMethod(cfg Config) (ssh.AuthMethod, error) {
	if cfg.UseAgent {
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, fmt.Errorf("SSH_AUTH_SOCK not set, cannot use SSH agent")
		}
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return nil, fmt.Errorf("connect to SSH agent: %w", err)
		}
		return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
	}

	if cfg.PrivateKeyPath == "" {
		return nil, fmt.Errorf("jump host requires either use_agent or private_key_path")
	}
	key, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return ssh.PublicKeys(signer), nil
}

func knownHostsCallback(path string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create ssh dir: %w", err)
		}
		if err := os.WriteFile(path, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("create known_hosts file: %w", err)
		}
	}

	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := callback(hostname, remote, key); err != nil {
			if keyErr, ok := err.(*knownhosts.KeyError); ok && len(keyErr.Want) > 0 {
				return fmt.Errorf("host key for %s has changed, possible man-in-the-middle: %w", hostname, err)
			}
			return fmt.Errorf("unknown host %s (fingerprint %s), add to known_hosts to connect", hostname, ssh.FingerprintSHA256(key))
		}
		logger.Debug("host key verified", "host", hostname)
		return nil
	}, nil
}
