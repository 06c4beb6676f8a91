package core

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
)

// EvaluateCondition evaluates a 'when' expression against the run
// context. The expression must produce a boolean. Exposed symbols:
// os, hostname, workdir, dry_run, vars, and env(name).
func EvaluateCondition(condition string, ctx *RunContext) (bool, error) {
	env := map[string]any{
		"os":       ctx.OS,
		"hostname": ctx.Hostname,
		"workdir":  ctx.WorkDir,
		"dry_run":  ctx.DryRun,
		"vars":     ctx.Vars,
		"env": func(name string) string {
			return os.Getenv(name)
		},
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid condition %q: %w", condition, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("condition %q failed: %w", condition, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not produce a boolean", condition)
	}
	return result, nil
}
