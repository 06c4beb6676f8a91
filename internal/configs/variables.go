package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/strata-iac/strata/internal/consts"
)

// ResolveVariables produces the final variable values for a run.
// Precedence, lowest to highest: declared defaults, STRATA_VAR_*
// entries from the workspace .env file and the process environment,
// then -var flags from the command line ("key=value" strings).
func ResolveVariables(cfg *Config, workDir string, flagVars []string) (map[string]any, error) {
	out := make(map[string]any, len(cfg.Variables))
	for name, v := range cfg.Variables {
		out[name] = v.Default
	}

	// .env is optional; entries only land in this process.
	envFile := filepath.Join(workDir, consts.EnvFileName)
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("could not load %s: %w", envFile, err)
		}
	}

	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, consts.VarPrefix) {
			continue
		}
		kv := strings.SplitN(strings.TrimPrefix(entry, consts.VarPrefix), "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.ToLower(kv[0])
		if _, declared := cfg.Variables[name]; !declared {
			return nil, fmt.Errorf("environment sets undeclared variable %q (%s%s)", name, consts.VarPrefix, kv[0])
		}
		out[name] = kv[1]
	}

	for _, flag := range flagVars {
		kv := strings.SplitN(flag, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid -var %q: expected key=value", flag)
		}
		if _, declared := cfg.Variables[kv[0]]; !declared {
			return nil, fmt.Errorf("-var sets undeclared variable %q", kv[0])
		}
		out[kv[0]] = kv[1]
	}

	for name, value := range out {
		if value == nil {
			return nil, fmt.Errorf("variable %q has no value; set a default, %s%s, or -var %s=...",
				name, consts.VarPrefix, strings.ToUpper(name), name)
		}
	}
	return out, nil
}
