package core

import (
	"context"
	"io"
	"os"
	"runtime"
)

// RunContext carries the runtime context of a single strata run.
// It wraps the standard context and adds run-scoped settings that
// providers and the engine need.
type RunContext struct {
	context.Context

	// Working directory (root of the configuration).
	WorkDir string

	// Host facts, available to conditions and templates.
	OS       string // runtime.GOOS
	Hostname string

	// Variable values resolved by the config layer.
	Vars map[string]any

	// DryRun: when true no provider call may mutate anything.
	DryRun bool

	// Current transaction ID, set by the engine per run.
	TxID string

	Logger Logger

	Stdout io.Writer
	Stderr io.Writer
}

// NewRunContext creates a run context with host facts filled in.
func NewRunContext(ctx context.Context, workDir string, dryRun bool) *RunContext {
	hostname, _ := os.Hostname()
	return &RunContext{
		Context:  ctx,
		WorkDir:  workDir,
		OS:       runtime.GOOS,
		Hostname: hostname,
		Vars:     map[string]any{},
		DryRun:   dryRun,
		Logger:   NewDefaultLogger(os.Stderr, LevelInfo),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}
