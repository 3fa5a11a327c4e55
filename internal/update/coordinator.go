package update

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/release"
	"github.com/iotlab/pubsub-ops/internal/version"
)

// ErrInProgress rejects a second run request while a session is active.
var ErrInProgress = errors.New("an update session is already in progress")

// ErrNoRelease means the remote publishes no release branches.
var ErrNoRelease = errors.New("no release branches found on the remote")

// VersionResolver determines the installed version.
type VersionResolver interface {
	Resolve(ctx context.Context) (version.Version, error)
}

// ReleaseCatalog lists published releases.
type ReleaseCatalog interface {
	FetchAndList(ctx context.Context) ([]release.Ref, error)
}

// Recorder persists terminal session outcomes; the history store implements
// it. A nil Recorder disables persistence.
type Recorder interface {
	Record(result Result, from string) error
}

// CheckResult is the side-effect-free "update available" verdict.
type CheckResult struct {
	Current         version.Version
	Target          release.Ref
	Releases        []release.Ref
	UpdateAvailable bool
}

// Coordinator owns the single-flight discipline for a working tree: at most
// one active session, enforced by an in-process guard plus the on-disk
// advisory lock shared with any other update mechanism pointed at the tree.
type Coordinator struct {
	tree     WorkingTree
	resolver VersionResolver
	catalog  ReleaseCatalog
	runner   execx.Runner
	cfg      *config.Settings
	logger   log.Logger
	recorder Recorder

	mu      sync.Mutex
	current *Session
}

// NewCoordinator wires a coordinator for one working tree.
func NewCoordinator(tree WorkingTree, resolver VersionResolver, catalog ReleaseCatalog,
	runner execx.Runner, cfg *config.Settings, logger log.Logger, recorder Recorder) *Coordinator {
	return &Coordinator{
		tree:     tree,
		resolver: resolver,
		catalog:  catalog,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
	}
}

// Check resolves the installed version, lists remote releases and compares.
// It mutates nothing and is safe to call on a timer. The target is the
// highest published release even when no update is available.
func (c *Coordinator) Check(ctx context.Context) (CheckResult, error) {
	current, err := c.resolver.Resolve(ctx)
	if err != nil {
		return CheckResult{}, err
	}

	refs, err := c.catalog.FetchAndList(ctx)
	if err != nil {
		return CheckResult{}, err
	}

	latest, ok := release.Latest(refs)
	if !ok {
		return CheckResult{Current: current}, ErrNoRelease
	}

	result := CheckResult{
		Current:         current,
		Target:          latest,
		Releases:        refs,
		UpdateAvailable: version.Compare(current, latest.Version) < 0,
	}
	if result.UpdateAvailable {
		c.logger.Info("Update available", "current", current.String(), "latest", latest.Version.String())
	} else {
		c.logger.Info("Installation is up to date", "current", current.String())
	}
	return result, nil
}

// Run starts a session against target on a background worker, streaming
// progress to sink. A second call while a session is active returns
// ErrInProgress; a concurrent holder of the tree's advisory lock returns
// ErrLocked. The result arrives exactly once on the returned channel.
func (c *Coordinator) Run(ctx context.Context, target release.Ref, opts Options, sink ProgressSink) (<-chan Result, error) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, ErrInProgress
	}

	lock := newTreeLock(c.tree.Path(), c.logger)
	if err := lock.Acquire(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	session := NewSession(c.tree, c.runner, c.cfg, c.logger, target, opts)
	c.current = session
	c.mu.Unlock()

	from := ""
	if current, err := c.resolver.Resolve(ctx); err == nil {
		from = current.String()
	}

	results := make(chan Result, 1)
	go func() {
		result := session.Run(ctx, sink)

		// Ownership of the tree ends here; by the time the result is
		// observable, the lock is gone and a new session can start.
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		lock.Release()

		c.record(result, from)
		results <- result
	}()
	return results, nil
}

// RunAndWait drives a session synchronously; callers that have no use for a
// background worker (the relauncher, the CLI) use this.
func (c *Coordinator) RunAndWait(ctx context.Context, target release.Ref, opts Options, sink ProgressSink) (Result, error) {
	results, err := c.Run(ctx, target, opts, sink)
	if err != nil {
		return Result{}, err
	}
	return <-results, nil
}

// Cancel requests cooperative cancellation of the active session, if any.
// The session stops at the next stage boundary.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	c.current.Cancel()
	return true
}

// Active reports whether a session is currently running.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Coordinator) record(result Result, from string) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(result, from); err != nil {
		c.logger.Warn("Could not record update attempt", "error", err)
	}
}

// UpdateToLatest is the unattended one-shot path shared by the webhook
// listener and the poller: check, and when an update is available run it in
// discard-and-force mode.
func (c *Coordinator) UpdateToLatest(ctx context.Context, sink ProgressSink) (Result, error) {
	check, err := c.Check(ctx)
	if err != nil {
		return Result{}, err
	}
	if !check.UpdateAvailable {
		return Result{}, fmt.Errorf("already up to date at %s", check.Current)
	}
	return c.RunAndWait(ctx, check.Target, Options{
		DiscardLocal: true,
		Backup:       c.cfg.BackupEnabled,
	}, sink)
}
