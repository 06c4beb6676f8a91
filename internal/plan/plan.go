package plan

import (
	"fmt"
	"time"
)

// UnknownValue is how not-yet-computed attribute values appear in a
// rendered plan. Their real value only exists after the upstream
// resource has been applied.
const UnknownValue = "(known after apply)"

// AttrDiff is one attribute-level change, already rendered to strings
// so a plan file round-trips without type loss.
type AttrDiff struct {
	Old      string `json:"old"`
	New      string `json:"new"`
	ForceNew bool   `json:"force_new,omitempty"`
}

// Change is the planned action for one resource.
type Change struct {
	Address string              `json:"address"`
	Type    string              `json:"type"`
	Name    string              `json:"name"`
	Action  Action              `json:"action"`
	Diffs   map[string]AttrDiff `json:"diffs,omitempty"`
	Reason  string              `json:"reason,omitempty"`
}

// Plan is the full set of decided changes for one run. It pins the
// state lineage and serial it was computed against; apply refuses a
// plan whose state has moved on.
type Plan struct {
	FormatVersion string    `json:"format_version"`
	CreatedAt     time.Time `json:"created_at"`
	Lineage       string    `json:"lineage"`
	Serial        uint64    `json:"serial"`
	Destroy       bool      `json:"destroy,omitempty"`

	// Changes holds one entry per declared resource plus one per
	// orphaned state record, in dependency order.
	Changes []Change `json:"changes"`

	// Layers groups the create/update/replace work into waves that can
	// run in parallel; DeleteOrder lists deletions dependents-first.
	Layers      [][]string `json:"layers,omitempty"`
	DeleteOrder []string   `json:"delete_order,omitempty"`

	// Skipped lists resources whose when condition was false.
	Skipped []string `json:"skipped,omitempty"`
}

const planFormatVersion = "1"

// Change returns the planned change for an address.
func (p *Plan) Change(address string) (Change, bool) {
	for _, c := range p.Changes {
		if c.Address == address {
			return c, true
		}
	}
	return Change{}, false
}

// HasChanges reports whether anything would be done.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != NoOp {
			return true
		}
	}
	return false
}

// Counts tallies changes per action.
func (p *Plan) Counts() map[Action]int {
	out := make(map[Action]int)
	for _, c := range p.Changes {
		out[c.Action]++
	}
	return out
}

// Summary is the one-line plan total, in the familiar shape.
func (p *Plan) Summary() string {
	counts := p.Counts()
	// A replace is one destroy plus one create.
	return fmt.Sprintf("%d to add, %d to change, %d to destroy",
		counts[Create]+counts[Replace],
		counts[Update],
		counts[Delete]+counts[Replace])
}
