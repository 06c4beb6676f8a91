package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/strata-iac/strata/internal/configs"
	"github.com/strata-iac/strata/internal/core"
	"github.com/strata-iac/strata/internal/dag"
	"github.com/strata-iac/strata/internal/providers"
	"github.com/strata-iac/strata/internal/state"
)

// Builder computes the set of changes that would bring the real
// resources in line with the configuration.
type Builder struct {
	Config   *configs.Config
	Eval     *configs.Evaluator
	Registry *providers.Registry
	State    *state.Manager
}

// BuildGraph constructs the dependency graph of the declared resources,
// covering both explicit depends_on and implicit expression references.
func BuildGraph(cfg *configs.Config) (*dag.Graph, error) {
	g := dag.New()
	for _, r := range cfg.Resources {
		if err := g.Add(r.Addr.String()); err != nil {
			return nil, err
		}
	}
	for _, r := range cfg.Resources {
		for _, dep := range r.DependsOn {
			if err := g.Depend(r.Addr.String(), dep); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Build computes the plan. Declared resources are walked in dependency
// order; state records with no declaration become deletions. In destroy
// mode everything recorded is planned for deletion instead.
func (b *Builder) Build(ctx *core.RunContext, destroy bool) (*Plan, error) {
	graph, err := BuildGraph(b.Config)
	if err != nil {
		return nil, err
	}
	layers, err := graph.Layers()
	if err != nil {
		return nil, err
	}

	p := &Plan{
		FormatVersion: planFormatVersion,
		CreatedAt:     time.Now(),
		Lineage:       b.State.Lineage(),
		Serial:        b.State.Serial(),
		Destroy:       destroy,
	}

	// Recorded attributes are visible to expressions from the start, so
	// references into resources that need no change resolve to real
	// values instead of unknowns.
	for _, r := range b.Config.Resources {
		if rec, ok := b.State.Record(r.Addr.String()); ok {
			b.Eval.SetResource(r.Addr.Type, r.Addr.Name, rec.Attrs)
		}
	}

	if destroy {
		return b.buildDestroy(ctx, p, graph)
	}

	var pending [][]string
	for _, layer := range layers {
		var wave []string
		for _, address := range layer {
			r, _ := b.Config.Resource(address)
			change, skipped, err := b.planResource(ctx, r)
			if err != nil {
				return nil, err
			}
			if skipped {
				p.Skipped = append(p.Skipped, address)
				continue
			}
			p.Changes = append(p.Changes, change)
			if change.Action == Create || change.Action == Update || change.Action == Replace {
				wave = append(wave, address)
			}
		}
		if len(wave) > 0 {
			pending = append(pending, wave)
		}
	}
	p.Layers = pending

	for _, change := range b.orphanChanges() {
		p.Changes = append(p.Changes, change)
		p.DeleteOrder = append(p.DeleteOrder, change.Address)
	}
	return p, nil
}

// planResource decides the action for a single declared resource.
func (b *Builder) planResource(ctx *core.RunContext, r *configs.Resource) (Change, bool, error) {
	address := r.Addr.String()

	if r.When != "" {
		ok, err := core.EvaluateCondition(r.When, ctx)
		if err != nil {
			return Change{}, false, fmt.Errorf("%s: %w", address, err)
		}
		if !ok {
			return Change{}, true, nil
		}
	}

	provider, err := b.Registry.ForType(r.Addr.Type)
	if err != nil {
		return Change{}, false, fmt.Errorf("%s: %w", address, err)
	}
	schema, err := provider.Schema(r.Addr.Type)
	if err != nil {
		return Change{}, false, fmt.Errorf("%s: %w", address, err)
	}

	desired, err := b.Eval.Attrs(r, ctx)
	if err != nil {
		return Change{}, false, err
	}
	if err := provider.Validate(r.Addr.Type, desired); err != nil {
		return Change{}, false, fmt.Errorf("%s: %w", address, err)
	}

	change := Change{
		Address: address,
		Type:    r.Addr.Type,
		Name:    r.Addr.Name,
		Diffs:   make(map[string]AttrDiff),
	}

	rec, exists := b.State.Record(address)
	if !exists {
		change.Action = Create
		for name, v := range desired {
			change.Diffs[name] = AttrDiff{New: formatValue(v)}
		}
		return change, false, nil
	}

	forceNew := false
	for name, v := range desired {
		prior, had := rec.Attrs[name]
		if had && attrEqual(prior, v) {
			continue
		}
		diff := AttrDiff{New: formatValue(v), ForceNew: schema.Attributes[name].ForceNew}
		if had {
			diff.Old = formatValue(prior)
		}
		change.Diffs[name] = diff
		if diff.ForceNew {
			forceNew = true
		}
	}

	// Attributes dropped from the configuration but still recorded are
	// changes too. Computed attributes stay; the provider owns those.
	for name, prior := range rec.Attrs {
		if _, still := desired[name]; still {
			continue
		}
		attr, known := schema.Attributes[name]
		if !known || attr.Computed {
			continue
		}
		change.Diffs[name] = AttrDiff{Old: formatValue(prior), New: "null", ForceNew: attr.ForceNew}
		if attr.ForceNew {
			forceNew = true
		}
	}

	switch {
	case len(change.Diffs) == 0:
		change.Action = NoOp
	case forceNew:
		change.Action = Replace
		change.Reason = "forces replacement"
	default:
		change.Action = Update
	}

	if rec.Status == state.StatusTainted && change.Action != Replace {
		change.Action = Replace
		change.Reason = "tainted by a failed apply"
	}
	return change, false, nil
}

// orphanChanges plans a deletion for every state record whose address
// is no longer declared anywhere in the configuration.
func (b *Builder) orphanChanges() []Change {
	declared := make(map[string]bool, len(b.Config.Resources))
	for _, r := range b.Config.Resources {
		declared[r.Addr.String()] = true
	}

	var out []Change
	for _, address := range b.State.Addresses() {
		if declared[address] {
			continue
		}
		rec, _ := b.State.Record(address)
		change := Change{
			Address: address,
			Type:    rec.Type,
			Name:    rec.Name,
			Action:  Delete,
			Reason:  "no longer in configuration",
			Diffs:   make(map[string]AttrDiff),
		}
		for name, v := range rec.Attrs {
			change.Diffs[name] = AttrDiff{Old: formatValue(v)}
		}
		out = append(out, change)
	}
	return out
}

// buildDestroy plans the deletion of everything recorded in state,
// dependents before their dependencies.
func (b *Builder) buildDestroy(ctx *core.RunContext, p *Plan, graph *dag.Graph) (*Plan, error) {
	reverse, err := graph.ReverseOrder()
	if err != nil {
		return nil, err
	}

	for _, address := range reverse {
		rec, ok := b.State.Record(address)
		if !ok {
			continue
		}
		change := Change{
			Address: address,
			Type:    rec.Type,
			Name:    rec.Name,
			Action:  Delete,
			Diffs:   make(map[string]AttrDiff),
		}
		for name, v := range rec.Attrs {
			change.Diffs[name] = AttrDiff{Old: formatValue(v)}
		}
		p.Changes = append(p.Changes, change)
		p.DeleteOrder = append(p.DeleteOrder, address)
	}

	// Orphans have no declared dependents left, so they go last.
	for _, change := range b.orphanChanges() {
		change.Reason = ""
		p.Changes = append(p.Changes, change)
		p.DeleteOrder = append(p.DeleteOrder, change.Address)
	}
	return p, nil
}

// attrEqual compares a recorded value with a desired one. Both sides
// pass through a JSON round-trip first so that e.g. int64 from an HCL
// expression and float64 from the decoded state file compare equal.
func attrEqual(prior, desired any) bool {
	if configs.IsUnknown(desired) {
		return false
	}
	return cmp.Equal(jsonNormalize(prior), jsonNormalize(desired))
}

func jsonNormalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

// formatValue renders an attribute value for plan output and plan
// files. Unknown values come out as the familiar placeholder.
func formatValue(v any) string {
	if configs.IsUnknown(v) {
		return UnknownValue
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	default:
		data, err := json.Marshal(jsonNormalize(v))
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// sortedAttrNames gives deterministic diff listing order.
func sortedAttrNames(diffs map[string]AttrDiff) []string {
	names := make([]string, 0, len(diffs))
	for name := range diffs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
