// Package relaunch implements the detached relauncher process.
//
// The relauncher exists because a process cannot reliably replace its own
// code and keep serving while a long dependency install runs against files
// it has already loaded. The main application hands off here, exits, and
// the relauncher brings up the fresh instance.
package relaunch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/git"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/release"
	"github.com/iotlab/pubsub-ops/internal/update"
	"github.com/iotlab/pubsub-ops/internal/version"
)

const parentExitTimeout = 30 * time.Second

// Relauncher waits for the old instance to exit, applies the update,
// re-verifies dependencies and starts the new instance detached.
type Relauncher struct {
	cfg    *config.Settings
	runner execx.Runner
	logger log.Logger
}

// New creates a Relauncher.
func New(cfg *config.Settings, runner execx.Runner, logger log.Logger) *Relauncher {
	return &Relauncher{cfg: cfg, runner: runner, logger: logger}
}

// Run performs the whole relaunch: invoked as
// `pubsub-ops relaunch <target-version> <tree-path>`.
func (r *Relauncher) Run(ctx context.Context, targetVersion, treePath string) error {
	r.logger.Info("Relauncher starting", "target", targetVersion, "tree", treePath)

	if _, err := os.Stat(treePath); err != nil {
		return fmt.Errorf("working tree does not exist: %w", err)
	}

	r.waitForParentExit()

	repo, err := git.Open(treePath, r.runner, r.logger)
	if err != nil {
		return err
	}

	target := release.Ref{
		Version: version.Parse(targetVersion),
		Branch:  r.cfg.ReleasePrefix + targetVersion,
	}

	resolver := release.NewResolver(repo, r.cfg.ProbeTimeout, r.logger)
	catalog := release.NewCatalog(repo, r.cfg.FetchTimeout, r.logger)
	coordinator := update.NewCoordinator(repo, resolver, catalog, r.runner, r.cfg, r.logger, nil)

	result, err := coordinator.RunAndWait(ctx, target, update.Options{DiscardLocal: true}, update.SinkFunc(func(e update.Event) {
		r.logger.Info(e.Message, "state", e.State.String())
	}))
	if err != nil {
		return err
	}
	if result.Outcome != update.OutcomeSucceeded {
		return fmt.Errorf("update did not complete: %s", result.Summary)
	}

	// Defense in depth: verify dependencies again, independent of the
	// session's own sync stage.
	verifyCtx, cancel := context.WithTimeout(ctx, r.cfg.DepsSyncTimeout)
	defer cancel()
	if err := update.VerifyDependencies(verifyCtx, r.runner, treePath, r.logger); err != nil {
		r.logger.Warn("Dependency verification reported problems", "error", err)
	}

	return r.startApplication(treePath)
}

// waitForParentExit blocks until the spawning process is gone or a timeout
// elapses. The relauncher is started in its own session; once the old
// instance exits we are reparented, which is the signal to proceed.
func (r *Relauncher) waitForParentExit() {
	r.logger.Info("Waiting for the old instance to exit")

	parent := os.Getppid()
	deadline := time.Now().Add(parentExitTimeout)
	for time.Now().Before(deadline) {
		if os.Getppid() != parent || parent == 1 {
			r.logger.Info("Old instance has exited")
			// Give file handles and sockets a moment to settle.
			time.Sleep(2 * time.Second)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	r.logger.Warn("Timed out waiting for the old instance to exit, proceeding anyway")
}

// startApplication launches the updated application detached from the
// relauncher's own session.
func (r *Relauncher) startApplication(treePath string) error {
	entry := r.cfg.AppEntry
	if entry == "" {
		entry = config.DefaultAppEntry
	}
	entryPath := filepath.Join(treePath, entry)
	if _, err := os.Stat(entryPath); err != nil {
		return fmt.Errorf("application entry point missing: %w", err)
	}

	python := update.PythonInterpreter(treePath)
	r.logger.Info("Starting application", "python", python, "entry", entryPath)

	cmd := exec.Command(python, entryPath)
	cmd.Dir = treePath
	update.Detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting application: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("detaching application: %w", err)
	}

	r.logger.Info("Application restarted")
	return nil
}
