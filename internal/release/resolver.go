package release

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iotlab/pubsub-ops/internal/git"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/version"
)

// Resolver determines the locally installed version of the working tree.
type Resolver struct {
	repo         *git.Repository
	probeTimeout time.Duration
	logger       log.Logger
}

// NewResolver creates a Resolver for the given working tree handle.
func NewResolver(repo *git.Repository, probeTimeout time.Duration, logger log.Logger) *Resolver {
	return &Resolver{repo: repo, probeTimeout: probeTimeout, logger: logger}
}

// Resolve tries, in strict priority order: the release-prefixed branch name,
// an on-disk VERSION file, git describe against tags, and finally the raw
// branch name. Each probe swallows its own failure independently; the
// describe probe, the only one that leaves the process, runs under the
// probe timeout. Only all four failing yields ErrVersionUndetectable.
func (r *Resolver) Resolve(ctx context.Context) (version.Version, error) {
	if v, ok := r.fromReleaseBranch(); ok {
		return v, nil
	}
	if v, ok := r.fromVersionFile(); ok {
		return v, nil
	}
	if v, ok := r.fromDescribe(ctx); ok {
		return v, nil
	}
	if v, ok := r.fromBranchName(); ok {
		return v, nil
	}
	r.logger.Warn("Could not detect version from any source", "path", r.repo.Path())
	return version.Version{}, ErrVersionUndetectable
}

func (r *Resolver) fromReleaseBranch() (version.Version, bool) {
	branch, err := r.repo.CurrentBranch()
	if err != nil {
		r.logger.Debug("Could not read current branch", "error", err)
		return version.Version{}, false
	}
	literal, ok := StripPrefix(branch)
	if !ok {
		return version.Version{}, false
	}
	r.logger.Info("Detected version from branch", "version", literal)
	return version.Parse(literal), true
}

func (r *Resolver) fromVersionFile() (version.Version, bool) {
	data, err := os.ReadFile(filepath.Join(r.repo.Path(), "VERSION"))
	if err != nil {
		r.logger.Debug("Could not read VERSION file", "error", err)
		return version.Version{}, false
	}
	literal := strings.TrimSpace(string(data))
	if literal == "" {
		return version.Version{}, false
	}
	r.logger.Info("Detected version from VERSION file", "version", literal)
	return version.Parse(literal), true
}

func (r *Resolver) fromDescribe(ctx context.Context) (version.Version, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	described, err := r.repo.Describe(probeCtx)
	if err != nil {
		r.logger.Debug("Could not run git describe", "error", err)
		return version.Version{}, false
	}
	// "v1.0.0-3-gdeadbee" -> "1.0.0": strip the leading v and the
	// commit-distance suffix after the first dash.
	literal := strings.TrimPrefix(described, "v")
	if i := strings.Index(literal, "-"); i >= 0 {
		literal = literal[:i]
	}
	if literal == "" {
		return version.Version{}, false
	}
	r.logger.Info("Detected version from git describe", "version", literal)
	return version.Parse(literal), true
}

func (r *Resolver) fromBranchName() (version.Version, bool) {
	branch, err := r.repo.CurrentBranch()
	if err != nil {
		r.logger.Debug("Could not read current branch", "error", err)
		return version.Version{}, false
	}
	if branch == "" {
		return version.Version{}, false
	}
	r.logger.Info("Using branch name as version", "branch", branch)
	return version.Parse(branch), true
}
