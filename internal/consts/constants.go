package consts

import "path/filepath"

// Version is the current strata release, checked against
// required_version constraints in the settings block.
const Version = "0.3.0"

// Constants for workspace paths and defaults
const (
	DefaultDirName = ".strata"
	StateFileName  = "state.json"
	LockFileName   = "state.lock"
	BackupDirName  = "backups"
	EnvFileName    = ".env"
	VarPrefix      = "STRATA_VAR_"
)

// StateFilePath returns the state file path under the working directory.
func StateFilePath(workDir string) string {
	return filepath.Join(workDir, DefaultDirName, StateFileName)
}

// LockFilePath returns the lock file path under the working directory.
func LockFilePath(workDir string) string {
	return filepath.Join(workDir, DefaultDirName, LockFileName)
}
