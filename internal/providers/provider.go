package providers

import (
	"context"
	"fmt"
	"sort"

	"github.com/strata-iac/strata/internal/addrs"
)

// Instance is one resource occurrence handed to a provider call.
// Attrs holds the desired attributes, Prior the recorded ones from
// state (empty on create). ID is the provider-assigned identifier.
type Instance struct {
	Addr  addrs.Resource
	ID    string
	Attrs map[string]any
	Prior map[string]any
}

// Attr describes one schema attribute.
type Attr struct {
	Required bool
	Computed bool // filled in by the provider, never diffed against config
	ForceNew bool // a change forces destroy+create instead of update
}

// Schema describes the attributes of one resource type.
type Schema struct {
	Attributes map[string]Attr
}

// Provider adapts resource CRUD to an external system. All calls
// receive the desired/prior attributes as plain maps; Create and
// Update return the resulting attributes including computed ones.
type Provider interface {
	Name() string
	ResourceTypes() []string
	Schema(resType string) (*Schema, error)

	Validate(resType string, attrs map[string]any) error
	Create(ctx context.Context, inst *Instance) (map[string]any, error)
	Read(ctx context.Context, inst *Instance) (map[string]any, error)
	Update(ctx context.Context, inst *Instance) (map[string]any, error)
	Delete(ctx context.Context, inst *Instance) error
}

// ValidateWithSchema is the shared schema-driven validation: required
// attributes must be set, unknown attributes are rejected, computed
// attributes may not be set by configuration.
func ValidateWithSchema(schema *Schema, attrs map[string]any) error {
	for name, attr := range schema.Attributes {
		if attr.Required {
			if _, ok := attrs[name]; !ok {
				return fmt.Errorf("missing required attribute %q", name)
			}
		}
	}
	for name := range attrs {
		attr, ok := schema.Attributes[name]
		if !ok {
			return fmt.Errorf("unknown attribute %q (known: %s)", name, knownAttrs(schema))
		}
		if attr.Computed && !attr.Required {
			return fmt.Errorf("attribute %q is computed and cannot be set", name)
		}
	}
	return nil
}

func knownAttrs(schema *Schema) string {
	names := make([]string, 0, len(schema.Attributes))
	for name, attr := range schema.Attributes {
		if attr.Computed && !attr.Required {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// StringAttr reads a string attribute, tolerating absence.
func StringAttr(attrs map[string]any, key string) string {
	if v, ok := attrs[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
