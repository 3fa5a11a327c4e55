// Package execx provides a testable abstraction for command execution.
package execx

import (
	"context"
	"os/exec"
)

// Runner defines an interface for executing external commands.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
	CombinedOutputIn(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// RealRunner implements Runner using os/exec.
type RealRunner struct{}

// NewRealRunner creates a new RealRunner.
func NewRealRunner() *RealRunner {
	return &RealRunner{}
}

// CombinedOutput executes a command and returns its combined stdout and stderr output.
func (r *RealRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// CombinedOutputIn executes a command with the given working directory and
// returns its combined stdout and stderr output.
func (r *RealRunner) CombinedOutputIn(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// ExitCode returns the exit code carried by err, or 0 when err is nil.
// A non-exit error (binary missing, context cancelled) reports -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
