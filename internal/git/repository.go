// Package git wraps the go-git operations pubsub-ops performs against the
// managed working tree.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/iotlab/pubsub-ops/internal/execx"
	"github.com/iotlab/pubsub-ops/internal/log"
)

const remoteName = "origin"

// Repository is a handle on the local working copy being updated. It is
// owned by a single process; concurrent updates against the same path are
// fenced off by the coordinator's advisory lock, not here.
type Repository struct {
	path   string
	repo   *gogit.Repository
	runner execx.Runner
	logger log.Logger
}

// Open opens the working copy at path.
func Open(path string, runner execx.Runner, logger log.Logger) (*Repository, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Repository{path: path, repo: repo, runner: runner, logger: logger}, nil
}

// Path returns the working tree path.
func (r *Repository) Path() string {
	return r.path
}

// CurrentBranch returns the short name of the checked-out branch. A detached
// HEAD returns the abbreviated commit hash instead, mirroring what
// `git rev-parse --abbrev-ref HEAD` shows.
func (r *Repository) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if head.Name().IsBranch() {
		return head.Name().Short(), nil
	}
	return head.Hash().String()[:7], nil
}

// IsDirty reports whether the working tree has uncommitted modifications.
// A status failure reports dirty, since proceeding on an unreadable tree is
// the riskier direction.
func (r *Repository) IsDirty() (bool, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return true, fmt.Errorf("opening worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return true, fmt.Errorf("reading worktree status: %w", err)
	}
	return !status.IsClean(), nil
}

// Fetch performs a prune-aware fetch of all remote branches. Already
// up-to-date is not an error.
func (r *Repository) Fetch(ctx context.Context) error {
	r.logger.Debug("Fetching all remote branches", "remote", remoteName)

	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Prune:      true,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching from %s: %w", remoteName, err)
	}
	return nil
}

// FetchBranch fetches a single branch from origin. The session uses this to
// avoid pulling the whole remote when it already knows its target ref.
func (r *Repository) FetchBranch(ctx context.Context, branch string) error {
	r.logger.Debug("Fetching branch", "branch", branch)

	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	err := r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s: %w", branch, err)
	}
	return nil
}

// RemoteBranches lists the short names of all origin branches known locally,
// in storage order. Call Fetch first for a current view.
func (r *Repository) RemoteBranches() ([]string, error) {
	refs, err := r.repo.References()
	if err != nil {
		return nil, fmt.Errorf("listing references: %w", err)
	}

	prefix := "refs/remotes/" + remoteName + "/"
	var branches []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		short := strings.TrimPrefix(name, prefix)
		if short == "HEAD" {
			return nil
		}
		branches = append(branches, short)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return branches, nil
}

// CheckoutTracking checks out branch, creating it from origin/<branch> with
// tracking configuration when no local branch of that name exists yet.
func (r *Repository) CheckoutTracking(branch string) error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	err = worktree.Checkout(&gogit.CheckoutOptions{Branch: localRef})
	if err == nil {
		return nil
	}

	r.logger.Debug("Local branch missing, creating tracking branch", "branch", branch)

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return fmt.Errorf("resolving origin/%s: %w", branch, err)
	}

	if err := worktree.Checkout(&gogit.CheckoutOptions{
		Branch: localRef,
		Hash:   remoteRef.Hash(),
		Create: true,
	}); err != nil {
		return fmt.Errorf("creating branch %s: %w", branch, err)
	}

	err = r.repo.CreateBranch(&gitconfig.Branch{
		Name:   branch,
		Remote: remoteName,
		Merge:  localRef,
	})
	if err != nil && !errors.Is(err, gogit.ErrBranchExists) {
		r.logger.Warn("Could not record tracking configuration", "branch", branch, "error", err)
	}
	return nil
}

// ResetHard forces the working tree to exactly match origin/<branch>,
// discarding anything the checkout step introduced.
func (r *Repository) ResetHard(branch string) error {
	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return fmt.Errorf("resolving origin/%s: %w", branch, err)
	}

	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	err = worktree.Reset(&gogit.ResetOptions{
		Mode:   gogit.HardReset,
		Commit: remoteRef.Hash(),
	})
	if err != nil {
		return fmt.Errorf("hard reset to origin/%s: %w", branch, err)
	}
	return nil
}

// DiscardAndClean hard-resets the tree to HEAD and removes untracked files
// and directories. Only the unattended fleet path uses this, where local
// edits are never expected.
func (r *Repository) DiscardAndClean() error {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}

	if err := worktree.Reset(&gogit.ResetOptions{Mode: gogit.HardReset, Commit: head.Hash()}); err != nil {
		return fmt.Errorf("hard reset: %w", err)
	}

	if err := worktree.Clean(&gogit.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("removing untracked files: %w", err)
	}
	return nil
}

// Describe runs `git describe --tags --always` through the system git
// binary; go-git has no equivalent of describe. Output is trimmed.
func (r *Repository) Describe(ctx context.Context) (string, error) {
	out, err := r.runner.CombinedOutputIn(ctx, r.path, "git", "describe", "--tags", "--always")
	if err != nil {
		return "", fmt.Errorf("git describe: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
