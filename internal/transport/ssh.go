package transport

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHTransport implements Transport over an SSH connection with an
// SFTP subsystem for file access.
type SSHTransport struct {
	client *ssh.Client
	sftp   *sftp.Client
	host   Host
}

// DialSSH opens a verified SSH connection to the host. Host keys are
// checked against ~/.ssh/known_hosts; there is deliberately no
// insecure fallback.
func DialSSH(h Host) (Transport, error) {
	var authMethods []ssh.AuthMethod

	if h.SSHKeyPath != "" {
		key, err := os.ReadFile(h.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("could not read ssh key %s: %w", h.SSHKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("could not parse ssh key %s: %w", h.SSHKeyPath, err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}
	if h.Password != "" {
		authMethods = append(authMethods, ssh.Password(h.Password))
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not find home directory: %w", err)
	}
	knownHostsPath := filepath.Join(homeDir, ".ssh", "known_hosts")

	hostKeyCallback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("could not load known_hosts (%s): %w; connect once with ssh to record the host key", knownHostsPath, err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            h.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         15 * time.Second,
	}

	port := h.Port
	if port == 0 {
		port = 22
	}

	addr := fmt.Sprintf("%s:%d", h.Address, port)
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("could not start sftp subsystem on %s: %w", addr, err)
	}

	return &SSHTransport{client: client, sftp: sftpClient, host: h}, nil
}

func (t *SSHTransport) ReadFile(path string) ([]byte, error) {
	f, err := t.sftp.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *SSHTransport) WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := t.sftp.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return t.sftp.Chmod(path, perm)
}

func (t *SSHTransport) Remove(path string) error {
	return t.sftp.Remove(path)
}

func (t *SSHTransport) Stat(path string) (os.FileInfo, error) {
	return t.sftp.Stat(path)
}

func (t *SSHTransport) MkdirAll(path string, perm os.FileMode) error {
	return t.sftp.MkdirAll(path)
}

// Execute runs a command on the remote host and returns its stdout.
func (t *SSHTransport) Execute(ctx context.Context, command string) (string, error) {
	session, err := t.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	var stdout bytes.Buffer
	session.Stdout = &stdout

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("remote command %q failed: %w", command, err)
		}
		return stdout.String(), nil
	}
}

func (t *SSHTransport) Close() error {
	if t.sftp != nil {
		t.sftp.Close()
	}
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
