package configs

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/transport"
)

// Settings is the optional "strata" block.
type Settings struct {
	RequiredVersion string
	Hosts           []transport.Host
}

// Variable is a declared input variable.
type Variable struct {
	Name        string
	Description string
	Default     any
	DeclFile    string
}

// Hooks are shell commands run around resource changes.
type Hooks struct {
	OnCreate  string `yaml:"on_create"`
	OnChange  string `yaml:"on_change"`
	OnDestroy string `yaml:"on_destroy"`
}

// Resource is one declared resource. Attributes come either as HCL
// expressions (evaluated lazily, so they can reference other resources)
// or as static values from YAML.
type Resource struct {
	Addr      addrs.Resource
	DependsOn []string // resource addresses, explicit + implicit
	When      string
	Hooks     Hooks
	DeclFile  string

	// Exactly one of the two is set.
	Exprs  map[string]hcl.Expression
	Static map[string]any
}

// Config is a fully loaded configuration directory.
type Config struct {
	Settings  Settings
	Variables map[string]*Variable
	Resources []*Resource
}

// Resource finds a declared resource by address.
func (c *Config) Resource(addr string) (*Resource, bool) {
	for _, r := range c.Resources {
		if r.Addr.String() == addr {
			return r, true
		}
	}
	return nil, false
}

// Addresses returns all declared resource addresses, sorted.
func (c *Config) Addresses() []string {
	out := make([]string, 0, len(c.Resources))
	for _, r := range c.Resources {
		out = append(out, r.Addr.String())
	}
	sort.Strings(out)
	return out
}

// checkDuplicates rejects resources declared twice and variables
// declared in several files.
func (c *Config) checkDuplicates() error {
	seen := make(map[string]string)
	for _, r := range c.Resources {
		if prev, ok := seen[r.Addr.String()]; ok {
			return fmt.Errorf("resource %s declared in both %s and %s", r.Addr, prev, r.DeclFile)
		}
		seen[r.Addr.String()] = r.DeclFile
	}
	return nil
}
