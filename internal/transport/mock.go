package transport

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// MockTransport is an in-memory Transport for provider tests.
type MockTransport struct {
	mu        sync.Mutex
	Files     map[string]string // path -> content
	Modes     map[string]os.FileMode
	Responses map[string]string // command -> output
	Errors    map[string]error  // command -> error
	Commands  []string          // executed commands, in order
	Closed    bool
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		Files:     make(map[string]string),
		Modes:     make(map[string]os.FileMode),
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
	}
}

func (m *MockTransport) ReadFile(path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.Files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(content), nil
}

func (m *MockTransport) WriteFile(path string, data []byte, perm os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Files[path] = string(data)
	m.Modes[path] = perm
	return nil
}

func (m *MockTransport) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Files[path]; !ok {
		return fs.ErrNotExist
	}
	delete(m.Files, path)
	return nil
}

func (m *MockTransport) Stat(path string) (os.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.Files[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return mockFileInfo{name: path, size: int64(len(content)), mode: m.Modes[path]}, nil
}

func (m *MockTransport) MkdirAll(path string, perm os.FileMode) error {
	return nil
}

func (m *MockTransport) Execute(ctx context.Context, command string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, command)
	if err, ok := m.Errors[command]; ok {
		return "", err
	}
	if out, ok := m.Responses[command]; ok {
		return out, nil
	}
	return "", fmt.Errorf("mock: no response registered for %q", command)
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

type mockFileInfo struct {
	name string
	size int64
	mode os.FileMode
}

func (f mockFileInfo) Name() string       { return f.name }
func (f mockFileInfo) Size() int64        { return f.size }
func (f mockFileInfo) Mode() os.FileMode  { return f.mode }
func (f mockFileInfo) ModTime() time.Time { return time.Time{} }
func (f mockFileInfo) IsDir() bool        { return false }
func (f mockFileInfo) Sys() any           { return nil }
