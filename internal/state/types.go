package state

import "time"

// Resource record statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusTainted = "tainted" // created but a later step failed; replaced on next apply
)

// Transaction operations and statuses.
const (
	OpApply    = "apply"
	OpDestroy  = "destroy"
	OpRollback = "rollback"

	TxSuccess  = "success"
	TxFailed   = "failed"
	TxReverted = "reverted"
)

// Record is the last-known applied state of a single resource.
type Record struct {
	Address     string         `json:"address"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Provider    string         `json:"provider"`
	ID          string         `json:"id,omitempty"` // provider-assigned identifier
	Attrs       map[string]any `json:"attrs"`
	Status      string         `json:"status"` // success, failed, tainted
	LastApplied time.Time      `json:"last_applied"`
}

// TransactionChange is a single change recorded within a run.
type TransactionChange struct {
	Address    string `json:"address"`
	Action     string `json:"action"` // create, update, replace, delete
	Diff       string `json:"diff,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`
}

// Transaction is one apply or destroy run.
type Transaction struct {
	ID        string              `json:"id"`
	Operation string              `json:"operation"` // apply, destroy, rollback
	Timestamp time.Time           `json:"timestamp"`
	Status    string              `json:"status"` // success, failed, reverted
	Changes   []TransactionChange `json:"changes"`
}

// State is the full persisted snapshot. Lineage identifies the state's
// birth; Serial strictly increases with every write so stale plan files
// can be detected.
type State struct {
	Version   string            `json:"version"`
	Lineage   string            `json:"lineage"`
	Serial    uint64            `json:"serial"`
	LastRun   time.Time         `json:"last_run"`
	Resources map[string]Record `json:"resources"`
	History   []Transaction     `json:"history,omitempty"`
}

const stateVersion = "1"

func NewState(lineage string) *State {
	return &State{
		Version:   stateVersion,
		Lineage:   lineage,
		Resources: make(map[string]Record),
	}
}
