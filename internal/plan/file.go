package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/strata-iac/strata/internal/state"
)

// ErrPlanStale means the state changed after the plan was computed.
var ErrPlanStale = errors.New("saved plan is stale: the state has changed since the plan was created")

// Save writes the plan to a file.
func (p *Plan) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write plan file: %w", err)
	}
	return nil
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read plan file: %w", err)
	}
	p := &Plan{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("plan file %s is corrupt: %w", path, err)
	}
	if p.FormatVersion != planFormatVersion {
		return nil, fmt.Errorf("plan file %s has unsupported format version %q", path, p.FormatVersion)
	}
	return p, nil
}

// CheckState verifies the plan still matches the state it was computed
// against. A different lineage means a different state entirely; a
// higher serial means someone applied in between.
func (p *Plan) CheckState(mgr *state.Manager) error {
	if p.Lineage != mgr.Lineage() {
		return fmt.Errorf("plan was created for state lineage %s, current is %s", p.Lineage, mgr.Lineage())
	}
	if p.Serial != mgr.Serial() {
		return fmt.Errorf("%w (plan serial %d, state serial %d)", ErrPlanStale, p.Serial, mgr.Serial())
	}
	return nil
}
