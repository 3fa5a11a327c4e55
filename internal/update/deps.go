package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/log"
)

// requirementsFile is the dependency manifest at the tree root.
const requirementsFile = "requirements.txt"

// PythonInterpreter returns the interpreter to run pip with, preferring the
// tree's virtual environment over anything system-wide.
func PythonInterpreter(treePath string) string {
	candidates := []string{
		filepath.Join(treePath, "venv", "bin", "python3"),
		filepath.Join(treePath, "venv", "bin", "python"),
		filepath.Join(treePath, "venv", "Scripts", "python.exe"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "python3"
}

// syncDependencies upgrades all packages listed in the tree's manifest. The
// caller treats a failure here as a warning, not a session failure.
func syncDependencies(ctx context.Context, runner execx.Runner, treePath string, logger log.Logger) error {
	manifest := filepath.Join(treePath, requirementsFile)
	if _, err := os.Stat(manifest); err != nil {
		logger.Info("No requirements.txt found, skipping dependency sync", "path", manifest)
		return nil
	}

	python := PythonInterpreter(treePath)
	logger.Info("Installing dependencies", "python", python, "manifest", manifest)

	out, err := runner.CombinedOutputIn(ctx, treePath,
		python, "-m", "pip", "install", "-r", requirementsFile, "--upgrade")
	if err != nil {
		return fmt.Errorf("pip install (exit %d): %w: %s",
			execx.ExitCode(err), err, tail(string(out), 500))
	}
	return nil
}

// VerifyDependencies re-runs the dependency sync against the tree; the
// relauncher calls this independently of the main session.
func VerifyDependencies(ctx context.Context, runner execx.Runner, treePath string, logger log.Logger) error {
	return syncDependencies(ctx, runner, treePath, logger)
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
