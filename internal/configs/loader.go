package configs

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar"
	goversion "github.com/hashicorp/go-version"
	"github.com/hashicorp/hcl/v2"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/consts"
)

// LoadDir reads every .hcl and .yaml/.yml file directly under dir and
// merges them into one Config. The result is structurally validated;
// expression evaluation happens later, per run.
func LoadDir(dir string) (*Config, error) {
	cfg := &Config{Variables: make(map[string]*Variable)}

	var paths []string
	for _, pattern := range []string{"*.hcl", "*.yaml", "*.yml"} {
		matches, err := doublestar.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("could not scan %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	// No files is a valid (empty) configuration: everything recorded in
	// state becomes an orphan and plans as a delete.
	sort.Strings(paths)

	for _, path := range paths {
		var err error
		if filepath.Ext(path) == ".hcl" {
			err = loadHCLFile(path, cfg)
		} else {
			err = loadYAMLFile(path, cfg)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.checkDuplicates(); err != nil {
		return nil, err
	}
	if err := checkRequiredVersion(cfg.Settings.RequiredVersion); err != nil {
		return nil, err
	}
	if err := validateReferences(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkRequiredVersion enforces the required_version constraint from
// the settings block against the running release.
func checkRequiredVersion(constraint string) error {
	if constraint == "" {
		return nil
	}

	constraints, err := goversion.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid required_version %q: %w", constraint, err)
	}
	current, err := goversion.NewVersion(consts.Version)
	if err != nil {
		return err
	}
	if !constraints.Check(current) {
		return fmt.Errorf("strata %s does not satisfy required_version %q", consts.Version, constraint)
	}
	return nil
}

// validateReferences checks that depends_on entries and variable
// references point at declared things.
func validateReferences(cfg *Config) error {
	declared := make(map[string]bool, len(cfg.Resources))
	for _, r := range cfg.Resources {
		declared[r.Addr.String()] = true
	}

	for _, r := range cfg.Resources {
		for _, dep := range r.DependsOn {
			if _, err := addrs.ParseResource(dep); err != nil {
				return fmt.Errorf("%s: %s: %w", r.DeclFile, r.Addr, err)
			}
			if !declared[dep] {
				return fmt.Errorf("%s: %s depends on undeclared resource %q", r.DeclFile, r.Addr, dep)
			}
		}

		for name, expr := range r.Exprs {
			for _, traversal := range expr.Variables() {
				if traversal.RootName() != "var" {
					continue
				}
				if len(traversal) < 2 {
					return fmt.Errorf("%s: %s: attribute %q: incomplete variable reference", r.DeclFile, r.Addr, name)
				}
				step, ok := traversal[1].(hcl.TraverseAttr)
				if !ok {
					return fmt.Errorf("%s: %s: attribute %q: invalid variable reference", r.DeclFile, r.Addr, name)
				}
				if _, declared := cfg.Variables[step.Name]; !declared {
					return fmt.Errorf("%s: %s: attribute %q references undeclared variable %q", r.DeclFile, r.Addr, name, step.Name)
				}
			}
		}
	}
	return nil
}
