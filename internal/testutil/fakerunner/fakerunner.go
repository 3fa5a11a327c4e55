// Package fakerunner provides a fake implementation of execx.Runner for testing.
package fakerunner

import (
	"context"
	"fmt"
	"strings"
)

// Runner is a fake implementation of execx.Runner for testing.
type Runner struct {
	outputs map[string][]byte
	errors  map[string]error
	calls   []Call
}

// Call represents a captured command execution call.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// New creates a new fake runner.
func New() *Runner {
	return &Runner{
		outputs: make(map[string][]byte),
		errors:  make(map[string]error),
		calls:   []Call{},
	}
}

// SetOutput sets the output for a specific command.
func (r *Runner) SetOutput(name string, args []string, output []byte) {
	key := r.makeKey(name, args)
	r.outputs[key] = output
}

// SetError sets the error for a specific command.
func (r *Runner) SetError(name string, args []string, err error) {
	key := r.makeKey(name, args)
	r.errors[key] = err
}

// Calls returns the captured command executions in order.
func (r *Runner) Calls() []Call {
	return r.calls
}

// CombinedOutput implements execx.Runner.
func (r *Runner) CombinedOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	return r.record("", name, args)
}

// CombinedOutputIn implements execx.Runner.
func (r *Runner) CombinedOutputIn(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	return r.record(dir, name, args)
}

func (r *Runner) record(dir, name string, args []string) ([]byte, error) {
	r.calls = append(r.calls, Call{Dir: dir, Name: name, Args: args})

	key := r.makeKey(name, args)

	if err, exists := r.errors[key]; exists {
		return r.outputs[key], err
	}

	if output, exists := r.outputs[key]; exists {
		return output, nil
	}

	// Default behavior - return empty output and no error
	return []byte{}, nil
}

func (r *Runner) makeKey(name string, args []string) string {
	return fmt.Sprintf("%s %s", name, strings.Join(args, " "))
}
