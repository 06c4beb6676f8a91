package core

import (
	"context"
	"os/exec"
)

// Runner abstracts process execution so provider tests can run
// without touching the host system.
type Runner interface {
	Run(cmd *exec.Cmd) error
	CombinedOutput(cmd *exec.Cmd) ([]byte, error)
	Output(cmd *exec.Cmd) ([]byte, error)
}

// RealRunner executes commands with os/exec.
type RealRunner struct{}

func (r *RealRunner) Run(cmd *exec.Cmd) error {
	return cmd.Run()
}

func (r *RealRunner) CombinedOutput(cmd *exec.Cmd) ([]byte, error) {
	return cmd.CombinedOutput()
}

func (r *RealRunner) Output(cmd *exec.Cmd) ([]byte, error) {
	return cmd.Output()
}

// CommandRunner is the global runner instance. Tests replace it with a mock.
var CommandRunner Runner = &RealRunner{}

// RunShell runs a shell command line through the global runner and
// returns its combined output.
func RunShell(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := CommandRunner.CombinedOutput(cmd)
	return string(out), err
}

// IsCommandAvailable reports whether a binary is on PATH.
var IsCommandAvailable = func(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
