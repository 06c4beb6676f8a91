package configs

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/strata-iac/strata/internal/core"
)

// unknownType marks attribute values that depend on a resource that
// has not been applied yet.
type unknownType struct{}

func (unknownType) String() string { return "(known after apply)" }

// Unknown is the placeholder for not-yet-computed values.
var Unknown = unknownType{}

// IsUnknown reports whether a value is the Unknown placeholder.
func IsUnknown(v any) bool {
	_, ok := v.(unknownType)
	return ok
}

// Evaluator resolves resource attribute expressions. Variables are
// fixed for the run; resource values accumulate as records are read
// from state and as the engine applies changes, so expressions that
// reference other resources see their freshest attributes. The engine
// publishes and evaluates from parallel waves, so resource values are
// guarded by a lock.
type Evaluator struct {
	mu        sync.RWMutex
	vars      map[string]cty.Value
	resources map[string]map[string]cty.Value // type -> name -> object
	declared  []*Resource
}

// NewEvaluator prepares an evaluator for the given config and
// resolved variable values.
func NewEvaluator(cfg *Config, vars map[string]any) *Evaluator {
	ctyVars := make(map[string]cty.Value, len(vars))
	for k, v := range vars {
		ctyVars[k] = goToCty(v)
	}

	ev := &Evaluator{
		vars:      ctyVars,
		resources: make(map[string]map[string]cty.Value),
		declared:  cfg.Resources,
	}
	// Every declared resource starts unknown so references to it
	// evaluate instead of erroring; the result is marked Unknown.
	for _, r := range cfg.Resources {
		ev.setValue(r.Addr.Type, r.Addr.Name, cty.DynamicVal)
	}
	return ev
}

// SetResource publishes the known attributes of one resource, making
// them visible to expressions in dependent resources.
func (ev *Evaluator) SetResource(resType, name string, attrs map[string]any) {
	obj := make(map[string]cty.Value, len(attrs))
	for k, v := range attrs {
		obj[k] = goToCty(v)
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if len(obj) == 0 {
		ev.setValue(resType, name, cty.EmptyObjectVal)
		return
	}
	ev.setValue(resType, name, cty.ObjectVal(obj))
}

// setValue expects mu to be held (or the evaluator to be unshared, as
// during construction).
func (ev *Evaluator) setValue(resType, name string, v cty.Value) {
	if ev.resources[resType] == nil {
		ev.resources[resType] = make(map[string]cty.Value)
	}
	ev.resources[resType][name] = v
}

// Attrs evaluates the attributes of a resource. HCL expressions are
// evaluated against var.* and res.*; static YAML attributes get their
// string values rendered as templates against the run context.
func (ev *Evaluator) Attrs(r *Resource, ctx *core.RunContext) (map[string]any, error) {
	if r.Static != nil {
		return ev.staticAttrs(r, ctx)
	}

	evalCtx := ev.hclContext()
	out := make(map[string]any, len(r.Exprs))
	for name, expr := range r.Exprs {
		v, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: attribute %q: %w", r.Addr, name, diags)
		}
		out[name] = ctyToGo(v)
	}
	return out, nil
}

func (ev *Evaluator) staticAttrs(r *Resource, ctx *core.RunContext) (map[string]any, error) {
	out := make(map[string]any, len(r.Static))
	data := core.TemplateDataFrom(ctx)
	for name, v := range r.Static {
		rendered, err := renderValue(v, data)
		if err != nil {
			return nil, fmt.Errorf("%s: attribute %q: %w", r.Addr, name, err)
		}
		out[name] = rendered
	}
	return out, nil
}

// hclContext snapshots the current values under the read lock; the
// caller evaluates against the immutable snapshot without holding it.
func (ev *Evaluator) hclContext() *hcl.EvalContext {
	ev.mu.RLock()
	defer ev.mu.RUnlock()

	types := make(map[string]cty.Value, len(ev.resources))
	for resType, names := range ev.resources {
		byName := make(map[string]cty.Value, len(names))
		for name, v := range names {
			byName[name] = v
		}
		types[resType] = cty.ObjectVal(byName)
	}

	resVal := cty.EmptyObjectVal
	if len(types) > 0 {
		resVal = cty.ObjectVal(types)
	}
	varVal := cty.EmptyObjectVal
	if len(ev.vars) > 0 {
		varVal = cty.ObjectVal(ev.vars)
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"var": varVal,
			"res": resVal,
		},
	}
}

// renderValue renders string values (and strings nested in maps and
// slices) as templates. YAML params have no expression language, so
// templating is how they reach run context values.
func renderValue(v any, data core.TemplateData) (any, error) {
	switch val := v.(type) {
	case string:
		return core.RenderTemplate(val, data)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := renderValue(item, data)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// ctyToGo converts a cty value into the plain Go values the engine and
// providers work with.
func ctyToGo(v cty.Value) any {
	if !v.IsKnown() {
		return Unknown
	}
	if v.IsNull() {
		return nil
	}

	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString()
	case t == cty.Bool:
		return v.True()
	case t == cty.Number:
		bf := v.AsBigFloat()
		if i, acc := bf.Int64(); acc == big.Exact {
			return i
		}
		f, _ := bf.Float64()
		return f
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, ctyToGo(ev))
		}
		return out
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			out[k.AsString()] = ctyToGo(ev)
		}
		return out
	}
	return nil
}

// goToCty converts plain Go values (state attributes, variable values)
// into cty values for expression evaluation.
func goToCty(v any) cty.Value {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType)
	case unknownType:
		return cty.DynamicVal
	case string:
		return cty.StringVal(val)
	case bool:
		return cty.BoolVal(val)
	case int:
		return cty.NumberIntVal(int64(val))
	case int64:
		return cty.NumberIntVal(val)
	case float64:
		return cty.NumberFloatVal(val)
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal
		}
		items := make([]cty.Value, len(val))
		for i, item := range val {
			items[i] = goToCty(item)
		}
		return cty.TupleVal(items)
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal
		}
		obj := make(map[string]cty.Value, len(val))
		for k, item := range val {
			obj[k] = goToCty(item)
		}
		return cty.ObjectVal(obj)
	default:
		return cty.StringVal(fmt.Sprintf("%v", val))
	}
}

// SortedKeys is a small helper for deterministic attr iteration in
// rendering code.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
