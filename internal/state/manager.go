package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager owns the state file. All mutation goes through it; a RWMutex
// keeps concurrent layer execution safe.
type Manager struct {
	FilePath string
	Current  *State
	mu       sync.RWMutex
}

// NewManager loads the state file at path, or starts a fresh state with
// a new lineage when the file does not exist yet.
func NewManager(path string) (*Manager, error) {
	mgr := &Manager{
		FilePath: path,
		Current:  NewState(uuid.New().String()),
	}

	if err := mgr.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not load state file %s: %w", path, err)
		}
		// First run: no state yet.
	}

	return mgr, nil
}

// Load reads and decodes the state file.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.FilePath)
	if err != nil {
		return err
	}

	st := &State{}
	if err := json.Unmarshal(data, st); err != nil {
		return fmt.Errorf("state file is corrupt: %w", err)
	}
	if st.Resources == nil {
		st.Resources = make(map[string]Record)
	}
	m.Current = st
	return nil
}

// Save persists the current state. The previous file is backed up
// first, then the new content is written to a temp file and renamed
// into place so a crash never leaves a half-written state. The serial
// is bumped on every save.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	m.Current.Serial++
	m.Current.LastRun = time.Now()

	data, err := json.MarshalIndent(m.Current, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.FilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := m.backupLocked(); err != nil {
		return fmt.Errorf("could not back up state before write: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), m.FilePath)
}

// Serial returns the current state serial.
func (m *Manager) Serial() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Current.Serial
}

// Lineage returns the state lineage ID.
func (m *Manager) Lineage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Current.Lineage
}

// SetRecord stores a resource record without saving. The engine batches
// record updates and saves once per layer.
func (m *Manager) SetRecord(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.LastApplied = time.Now()
	m.Current.Resources[rec.Address] = rec
}

// RemoveRecord drops a resource record without saving.
func (m *Manager) RemoveRecord(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Current.Resources, address)
}

// Record returns the record for an address, if present.
func (m *Manager) Record(address string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.Current.Resources[address]
	return rec, ok
}

// Addresses returns all recorded resource addresses, sorted.
func (m *Manager) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.Current.Resources))
	for addr := range m.Current.Resources {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
