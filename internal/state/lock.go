package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrStateLocked is returned when another run already holds the lock.
var ErrStateLocked = errors.New("state is locked")

// LockInfo describes the holder of the state lock.
type LockInfo struct {
	PID       int       `json:"pid"`
	Operation string    `json:"operation"`
	Created   time.Time `json:"created"`
}

// Lock takes the coarse state lock by creating the lock file
// exclusively. Apply and destroy must hold it; plan does not.
func Lock(path, operation string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder := readLockInfo(path)
			return nil, fmt.Errorf("%w by pid %d (%s since %s); run \"strata state unlock\" if the process is gone",
				ErrStateLocked, holder.PID, holder.Operation, holder.Created.Format(time.RFC3339))
		}
		return nil, err
	}

	info := LockInfo{
		PID:       os.Getpid(),
		Operation: operation,
		Created:   time.Now(),
	}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	unlock := func() error {
		return os.Remove(path)
	}
	return unlock, nil
}

// ForceUnlock removes a lock file regardless of its holder.
func ForceUnlock(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func readLockInfo(path string) LockInfo {
	var info LockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info
	}
	_ = json.Unmarshal(data, &info)
	return info
}
