package configs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strata-iac/strata/internal/addrs"
	"github.com/strata-iac/strata/internal/transport"
)

// yamlFile mirrors the YAML configuration shape. YAML resources carry
// static params; references between resources need explicit
// depends_on since there is no expression language in this path.
type yamlFile struct {
	RequiredVersion string           `yaml:"required_version"`
	Vars            map[string]any   `yaml:"vars"`
	Hosts           []transport.Host `yaml:"hosts"`
	Resources       []yamlResource   `yaml:"resources"`
}

type yamlResource struct {
	Type      string         `yaml:"type"`
	Name      string         `yaml:"name"`
	Params    map[string]any `yaml:"params"`
	DependsOn []string       `yaml:"depends_on"`
	When      string         `yaml:"when"`
	Hooks     Hooks          `yaml:"hooks"`
}

// loadYAMLFile parses one .yaml file into the config.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%s: yaml parse error: %w", path, err)
	}

	if file.RequiredVersion != "" {
		if cfg.Settings.RequiredVersion != "" {
			return fmt.Errorf("%s: required_version declared more than once", path)
		}
		cfg.Settings.RequiredVersion = file.RequiredVersion
	}
	cfg.Settings.Hosts = append(cfg.Settings.Hosts, file.Hosts...)

	for name, value := range file.Vars {
		if prev, ok := cfg.Variables[name]; ok {
			return fmt.Errorf("variable %q declared in both %s and %s", name, prev.DeclFile, path)
		}
		cfg.Variables[name] = &Variable{Name: name, Default: value, DeclFile: path}
	}

	for _, yr := range file.Resources {
		if yr.Type == "" || yr.Name == "" {
			return fmt.Errorf("%s: every resource needs type and name", path)
		}
		params := yr.Params
		if params == nil {
			params = map[string]any{}
		}
		cfg.Resources = append(cfg.Resources, &Resource{
			Addr:      addrs.Resource{Type: yr.Type, Name: yr.Name},
			DependsOn: yr.DependsOn,
			When:      yr.When,
			Hooks:     yr.Hooks,
			DeclFile:  path,
			Static:    params,
		})
	}
	return nil
}
