// Package transport provides file access on remote hosts for the
// remote provider. The production implementation speaks SSH/SFTP;
// tests use the in-memory mock.
package transport

import (
	"context"
	"os"
)

// Host describes an SSH endpoint from the settings block.
type Host struct {
	Name       string `hcl:"name,label" yaml:"name"`
	Address    string `hcl:"address" yaml:"address"`
	User       string `hcl:"user" yaml:"user"`
	Port       int    `hcl:"port,optional" yaml:"port"`
	SSHKeyPath string `hcl:"ssh_key_path,optional" yaml:"ssh_key_path"`
	Password   string `hcl:"password,optional" yaml:"password"`
}

// Transport is the minimal remote file surface the remote provider needs.
type Transport interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Execute(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens a transport to a named host. Injected so the provider
// can be tested without a live SSH server.
type Dialer func(host Host) (Transport, error)
