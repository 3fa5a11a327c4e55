// Package update implements the update session state machine and the
// coordinator that owns it.
package update

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iotlab/pubsub-ops/internal/config"
	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/release"
)

// State is a stage of an update session. Sessions progress strictly
// forward; a failed stage is never retried within the same session.
type State int

// Session states in execution order, plus the two terminal exits.
const (
	StateCreated State = iota
	StateCheckingTree
	StateBackingUp
	StateFetching
	StateCheckingOut
	StateSyncingDeps
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateCheckingTree:
		return "checking-working-tree"
	case StateBackingUp:
		return "backing-up"
	case StateFetching:
		return "fetching"
	case StateCheckingOut:
		return "checking-out"
	case StateSyncingDeps:
		return "syncing-dependencies"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a session.
type Outcome string

// Terminal outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Reason classifies why a session failed.
type Reason string

// Failure reasons. DependencySync and BackupFailed never appear as a
// session's terminal reason; they are recorded as warnings instead.
const (
	ReasonNone             Reason = ""
	ReasonDirtyWorkingTree Reason = "dirty-working-tree"
	ReasonNetworkFailure   Reason = "network-failure"
	ReasonCheckoutConflict Reason = "checkout-conflict"
	ReasonTimeout          Reason = "timeout"
	ReasonCancelled        Reason = "cancelled"
)

// ErrDirtyWorkingTree is the safe-mode refusal to overwrite local edits.
var ErrDirtyWorkingTree = errors.New("working tree has uncommitted modifications")

// Event is one progress notification. Events for a session are strictly
// ordered and monotonic with respect to the state machine.
type Event struct {
	State   State
	Message string
	Time    time.Time
}

// ProgressSink receives ordered progress events from a running session.
type ProgressSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

// Publish implements ProgressSink.
func (f SinkFunc) Publish(e Event) { f(e) }

// discardSink drops events when the caller supplies no sink.
type discardSink struct{}

func (discardSink) Publish(Event) {}

// WorkingTree is what a session needs from the repository handle.
type WorkingTree interface {
	Path() string
	IsDirty() (bool, error)
	DiscardAndClean() error
	FetchBranch(ctx context.Context, branch string) error
	CheckoutTracking(branch string) error
	ResetHard(branch string) error
}

// Options control a single update attempt.
type Options struct {
	// DiscardLocal selects the unattended fleet variant: instead of
	// failing on a dirty tree, hard-reset it and remove untracked files
	// before proceeding.
	DiscardLocal bool
	// Backup copies the tree aside before mutating it.
	Backup bool
}

// Result is the terminal report of a session: one unambiguous summary line
// plus the full stage-by-stage log, the only evidence available to diagnose
// a failed fleet update after the fact.
type Result struct {
	Outcome    Outcome
	Reason     Reason
	Err        error
	Summary    string
	Warnings   []string
	Log        []Event
	BackupPath string
	Target     release.Ref
	StartedAt  time.Time
	FinishedAt time.Time
}

// Session performs a single update attempt against a working tree. Create
// one per attempt and discard it after the result is reported.
type Session struct {
	tree   WorkingTree
	runner execx.Runner
	cfg    *config.Settings
	logger log.Logger
	target release.Ref
	opts   Options

	cancelled atomic.Bool

	mu         sync.Mutex
	state      State
	events     []Event
	warnings   []string
	backupPath string
}

// NewSession creates a session targeting the given release ref.
func NewSession(tree WorkingTree, runner execx.Runner, cfg *config.Settings, logger log.Logger, target release.Ref, opts Options) *Session {
	return &Session{
		tree:   tree,
		runner: runner,
		cfg:    cfg,
		logger: logger,
		target: target,
		opts:   opts,
		state:  StateCreated,
	}
}

// Cancel requests cooperative cancellation. The flag is examined only at
// stage boundaries: a fetch, checkout or dependency install already in
// flight runs to completion before cancellation is honored.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to a terminal outcome. It blocks for the whole
// attempt and is meant to be confined to a worker goroutine.
func (s *Session) Run(ctx context.Context, sink ProgressSink) Result {
	if sink == nil {
		sink = discardSink{}
	}
	started := time.Now()

	stages := []func(context.Context, ProgressSink) *Result{
		s.checkWorkingTree,
		s.backUp,
		s.fetch,
		s.checkout,
		s.syncDependencies,
	}
	for _, stage := range stages {
		if s.cancelled.Load() {
			return s.finishCancelled(sink, started)
		}
		if res := stage(ctx, sink); res != nil {
			res.StartedAt = started
			res.FinishedAt = time.Now()
			return *res
		}
	}
	if s.cancelled.Load() {
		// Too late to matter, but honor the request in the report.
		return s.finishCancelled(sink, started)
	}
	return s.finishCompleted(sink, started)
}

func (s *Session) transition(sink ProgressSink, state State, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	event := Event{State: state, Message: message, Time: time.Now()}

	s.mu.Lock()
	s.state = state
	s.events = append(s.events, event)
	s.mu.Unlock()

	s.logger.Info(message, "state", state.String())
	sink.Publish(event)
}

func (s *Session) warn(sink ProgressSink, format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	s.mu.Lock()
	state := s.state
	s.warnings = append(s.warnings, message)
	event := Event{State: state, Message: "warning: " + message, Time: time.Now()}
	s.events = append(s.events, event)
	s.mu.Unlock()

	s.logger.Warn(message)
	sink.Publish(event)
}

func (s *Session) checkWorkingTree(_ context.Context, sink ProgressSink) *Result {
	s.transition(sink, StateCheckingTree, "Checking working tree at %s", s.tree.Path())

	if s.opts.DiscardLocal {
		s.transition(sink, StateCheckingTree, "Discarding local modifications and untracked files")
		if err := s.tree.DiscardAndClean(); err != nil {
			return s.fail(sink, ReasonCheckoutConflict, fmt.Errorf("discarding local state: %w", err))
		}
		return nil
	}

	dirty, err := s.tree.IsDirty()
	if err != nil {
		return s.fail(sink, ReasonDirtyWorkingTree, fmt.Errorf("checking working tree: %w", err))
	}
	if dirty {
		return s.fail(sink, ReasonDirtyWorkingTree,
			fmt.Errorf("%w: commit or stash local changes first", ErrDirtyWorkingTree))
	}
	return nil
}

func (s *Session) backUp(_ context.Context, sink ProgressSink) *Result {
	if !s.opts.Backup {
		return nil
	}
	s.transition(sink, StateBackingUp, "Creating backup copy of %s", s.tree.Path())

	backupPath, err := backupTree(s.tree.Path(), s.cfg.BackupDir)
	if err != nil {
		// The update proceeds without a safety copy; the operator is
		// told so prominently.
		s.warn(sink, "Backup failed, continuing without a safety copy: %v", err)
		return nil
	}

	s.mu.Lock()
	s.backupPath = backupPath
	s.mu.Unlock()

	s.transition(sink, StateBackingUp, "Backup created at %s", backupPath)
	return nil
}

func (s *Session) fetch(ctx context.Context, sink ProgressSink) *Result {
	s.transition(sink, StateFetching, "Fetching %s", s.target.RemoteName())

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	if err := s.tree.FetchBranch(fetchCtx, s.target.Branch); err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return s.fail(sink, ReasonTimeout, fmt.Errorf("fetch timed out after %s", s.cfg.FetchTimeout))
		}
		return s.fail(sink, ReasonNetworkFailure, fmt.Errorf("%v%s", err, authHint(err)))
	}
	return nil
}

func (s *Session) checkout(ctx context.Context, sink ProgressSink) *Result {
	s.transition(sink, StateCheckingOut, "Checking out %s", s.target.Branch)

	checkoutCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckoutTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := s.tree.CheckoutTracking(s.target.Branch); err != nil {
			done <- err
			return
		}
		done <- s.tree.ResetHard(s.target.Branch)
	}()

	select {
	case err := <-done:
		if err != nil {
			return s.fail(sink, ReasonCheckoutConflict, fmt.Errorf("checkout %s: %w", s.target.Branch, err))
		}
		return nil
	case <-checkoutCtx.Done():
		// The in-flight operation cannot be interrupted; the tree stays
		// exclusively owned until it returns, and only then is the stage
		// reported as timed out.
		s.logger.Warn("Checkout passed its deadline, waiting for the operation to return",
			"timeout", s.cfg.CheckoutTimeout)
		<-done
		return s.fail(sink, ReasonTimeout, fmt.Errorf("checkout timed out after %s", s.cfg.CheckoutTimeout))
	}
}

func (s *Session) syncDependencies(ctx context.Context, sink ProgressSink) *Result {
	s.transition(sink, StateSyncingDeps, "Syncing dependencies")

	depsCtx, cancel := context.WithTimeout(ctx, s.cfg.DepsSyncTimeout)
	defer cancel()

	if err := syncDependencies(depsCtx, s.runner, s.tree.Path(), s.logger); err != nil {
		// Code update already succeeded; a failed dependency sync is a
		// prominent post-update warning, never a session failure.
		s.warn(sink, "Dependency sync reported problems: %v", err)
	}
	return nil
}

func (s *Session) fail(sink ProgressSink, reason Reason, err error) *Result {
	summary := fmt.Sprintf("Update to %s failed (%s): %v", s.target.Version, reason, err)
	s.transition(sink, StateFailed, "%s", summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Result{
		Outcome:    OutcomeFailed,
		Reason:     reason,
		Err:        err,
		Summary:    summary,
		Warnings:   s.warnings,
		Log:        s.events,
		BackupPath: s.backupPath,
		Target:     s.target,
	}
}

func (s *Session) finishCancelled(sink ProgressSink, started time.Time) Result {
	summary := fmt.Sprintf("Update to %s cancelled", s.target.Version)
	s.transition(sink, StateCancelled, "%s", summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		Outcome:    OutcomeCancelled,
		Reason:     ReasonCancelled,
		Summary:    summary,
		Warnings:   s.warnings,
		Log:        s.events,
		BackupPath: s.backupPath,
		Target:     s.target,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

func (s *Session) finishCompleted(sink ProgressSink, started time.Time) Result {
	summary := fmt.Sprintf("Update to %s completed successfully", s.target.Version)

	s.mu.Lock()
	backupPath := s.backupPath
	s.mu.Unlock()
	if backupPath != "" {
		summary += fmt.Sprintf(" (backup at %s)", backupPath)
	}
	s.transition(sink, StateCompleted, "%s", summary)

	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		Outcome:    OutcomeSucceeded,
		Summary:    summary,
		Warnings:   s.warnings,
		Log:        s.events,
		BackupPath: backupPath,
		Target:     s.target,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
}

// authHint appends guidance when a fetch failure looks like remote
// authentication misconfiguration rather than a transient network problem.
func authHint(err error) string {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "publickey") || strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "authentication required") {
		return " (publickey/permission errors usually mean the remote authentication is misconfigured)"
	}
	return ""
}
