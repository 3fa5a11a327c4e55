package update

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// RestartInPlace re-executes the current binary with the same arguments,
// replacing the running process. Callers must only invoke this after the
// application has confirmed it is safe to go down; the orchestrator offers
// a restart, it never forces one.
func RestartInPlace() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	return restartPlatform(exe, os.Args, os.Environ())
}

// HandoffRelauncher spawns a detached relauncher process that waits for
// this process to exit, re-verifies dependencies and starts a fresh
// instance. Used when the running process cannot safely replace itself, for
// example while a long dependency install touches files it has loaded.
func HandoffRelauncher(targetVersion, treePath string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	cmd := exec.Command(exe, "relaunch", targetVersion, treePath)

	// The relauncher outlives this process and has no terminal; its log
	// file next to the tree is the only trace of what it did.
	logPath := filepath.Join(filepath.Dir(treePath), "pubsub-ops-relaunch.log")
	if logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640); err == nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		defer logFile.Close()
	}
	Detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting relauncher: %w", err)
	}
	// Detached on purpose; the relauncher outlives us.
	return cmd.Process.Release()
}
