package configs

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/transport"
)

// loadHCLFile parses one .hcl file into the config. Resource attribute
// expressions are kept unevaluated; only meta-arguments and the
// settings/variable blocks are resolved here.
func loadHCLFile(path string, cfg *Config) error {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return diags
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return fmt.Errorf("%s: unexpected body type", path)
	}

	for _, block := range body.Blocks {
		switch block.Type {
		case "strata":
			if err := decodeSettingsBlock(path, block, cfg); err != nil {
				return err
			}
		case "variable":
			if err := decodeVariableBlock(path, block, cfg); err != nil {
				return err
			}
		case "resource":
			if err := decodeResourceBlock(path, block, cfg); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s:%d: unsupported block type %q", path, block.TypeRange.Start.Line, block.Type)
		}
	}

	for _, attr := range body.Attributes {
		return fmt.Errorf("%s:%d: unexpected top-level attribute %q", path, attr.SrcRange.Start.Line, attr.Name)
	}
	return nil
}

func decodeSettingsBlock(path string, block *hclsyntax.Block, cfg *Config) error {
	if len(block.Labels) != 0 {
		return fmt.Errorf("%s:%d: strata block takes no labels", path, block.TypeRange.Start.Line)
	}

	for name, attr := range block.Body.Attributes {
		switch name {
		case "required_version":
			v, err := staticString(attr.Expr)
			if err != nil {
				return fmt.Errorf("%s: required_version: %w", path, err)
			}
			if cfg.Settings.RequiredVersion != "" {
				return fmt.Errorf("%s: required_version declared more than once", path)
			}
			cfg.Settings.RequiredVersion = v
		default:
			return fmt.Errorf("%s: unsupported setting %q", path, name)
		}
	}

	for _, inner := range block.Body.Blocks {
		if inner.Type != "host" {
			return fmt.Errorf("%s: unsupported block %q inside strata block", path, inner.Type)
		}
		if len(inner.Labels) != 1 {
			return fmt.Errorf("%s: host block needs exactly one label", path)
		}
		host := transport.Host{Name: inner.Labels[0]}
		for name, attr := range inner.Body.Attributes {
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("%s: host %q: %w", path, host.Name, diags)
			}
			switch name {
			case "address":
				host.Address = v.AsString()
			case "user":
				host.User = v.AsString()
			case "port":
				n, _ := v.AsBigFloat().Int64()
				host.Port = int(n)
			case "ssh_key_path":
				host.SSHKeyPath = v.AsString()
			case "password":
				host.Password = v.AsString()
			default:
				return fmt.Errorf("%s: host %q: unsupported attribute %q", path, host.Name, name)
			}
		}
		cfg.Settings.Hosts = append(cfg.Settings.Hosts, host)
	}
	return nil
}

func decodeVariableBlock(path string, block *hclsyntax.Block, cfg *Config) error {
	if len(block.Labels) != 1 {
		return fmt.Errorf("%s:%d: variable block needs exactly one label", path, block.TypeRange.Start.Line)
	}
	name := block.Labels[0]
	if prev, ok := cfg.Variables[name]; ok {
		return fmt.Errorf("variable %q declared in both %s and %s", name, prev.DeclFile, path)
	}

	v := &Variable{Name: name, DeclFile: path}
	for attrName, attr := range block.Body.Attributes {
		switch attrName {
		case "default":
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return fmt.Errorf("%s: variable %q default: %w", path, name, diags)
			}
			v.Default = ctyToGo(val)
		case "description":
			s, err := staticString(attr.Expr)
			if err != nil {
				return fmt.Errorf("%s: variable %q description: %w", path, name, err)
			}
			v.Description = s
		default:
			return fmt.Errorf("%s: variable %q: unsupported attribute %q", path, name, attrName)
		}
	}
	cfg.Variables[name] = v
	return nil
}

func decodeResourceBlock(path string, block *hclsyntax.Block, cfg *Config) error {
	if len(block.Labels) != 2 {
		return fmt.Errorf("%s:%d: resource block needs two labels: type and name", path, block.TypeRange.Start.Line)
	}

	res := &Resource{
		Addr:     addrs.Resource{Type: block.Labels[0], Name: block.Labels[1]},
		DeclFile: path,
		Exprs:    make(map[string]hcl.Expression),
	}

	for name, attr := range block.Body.Attributes {
		switch name {
		case "depends_on":
			deps, err := staticStringList(attr.Expr)
			if err != nil {
				return fmt.Errorf("%s: %s: depends_on: %w", path, res.Addr, err)
			}
			res.DependsOn = append(res.DependsOn, deps...)
		case "when":
			s, err := staticString(attr.Expr)
			if err != nil {
				return fmt.Errorf("%s: %s: when: %w", path, res.Addr, err)
			}
			res.When = s
		default:
			res.Exprs[name] = attr.Expr
		}
	}

	for _, inner := range block.Body.Blocks {
		if inner.Type != "hooks" {
			return fmt.Errorf("%s: %s: unsupported block %q inside resource", path, res.Addr, inner.Type)
		}
		for name, attr := range inner.Body.Attributes {
			s, err := staticString(attr.Expr)
			if err != nil {
				return fmt.Errorf("%s: %s: hooks.%s: %w", path, res.Addr, name, err)
			}
			switch name {
			case "on_create":
				res.Hooks.OnCreate = s
			case "on_change":
				res.Hooks.OnChange = s
			case "on_destroy":
				res.Hooks.OnDestroy = s
			default:
				return fmt.Errorf("%s: %s: unsupported hook %q", path, res.Addr, name)
			}
		}
	}

	// Implicit dependencies from res.* references.
	for name, expr := range res.Exprs {
		for _, traversal := range expr.Variables() {
			switch traversal.RootName() {
			case "res":
				dep, err := traversalAddr(traversal)
				if err != nil {
					return fmt.Errorf("%s: %s: attribute %q: %w", path, res.Addr, name, err)
				}
				if dep == res.Addr.String() {
					return fmt.Errorf("%s: %s: attribute %q refers to its own resource", path, res.Addr, name)
				}
				res.DependsOn = appendUnique(res.DependsOn, dep)
			case "var":
				// checked against declared variables in Validate
			default:
				return fmt.Errorf("%s: %s: attribute %q references unknown symbol %q (only var.* and res.* are available)",
					path, res.Addr, name, traversal.RootName())
			}
		}
	}

	cfg.Resources = append(cfg.Resources, res)
	return nil
}

// traversalAddr turns a res.<type>.<name>... traversal into an address.
func traversalAddr(traversal hcl.Traversal) (string, error) {
	if len(traversal) < 3 {
		return "", fmt.Errorf("incomplete resource reference; expected res.<type>.<name>.<attribute>")
	}
	typeStep, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("invalid resource reference")
	}
	nameStep, ok := traversal[2].(hcl.TraverseAttr)
	if !ok {
		return "", fmt.Errorf("invalid resource reference")
	}
	return typeStep.Name + "." + nameStep.Name, nil
}

func staticString(expr hcl.Expression) (string, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("must be a static string: %w", diags)
	}
	if v.Type() != cty.String {
		return "", fmt.Errorf("must be a string")
	}
	return v.AsString(), nil
}

func staticStringList(expr hcl.Expression) ([]string, error) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("must be a static list of strings: %w", diags)
	}
	if !v.CanIterateElements() {
		return nil, fmt.Errorf("must be a list of strings")
	}
	var out []string
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.Type() != cty.String {
			return nil, fmt.Errorf("must be a list of strings")
		}
		out = append(out, ev.AsString())
	}
	return out, nil
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
