package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/strata-iac/strata/internal/consts"
)

// backupLocked copies the existing state file into the backups
// directory next to it, named by the serial it held. Called with the
// manager lock held, before every write.
func (m *Manager) backupLocked() error {
	data, err := os.ReadFile(m.FilePath)
	if os.IsNotExist(err) {
		return nil // nothing to back up on first write
	}
	if err != nil {
		return err
	}

	// Serial was already bumped for the pending write; the file on disk
	// still holds the previous one.
	backupDir := filepath.Join(filepath.Dir(m.FilePath), consts.BackupDirName)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return err
	}

	name := fmt.Sprintf("state-%d.json", m.Current.Serial-1)
	return os.WriteFile(filepath.Join(backupDir, name), data, 0644)
}
