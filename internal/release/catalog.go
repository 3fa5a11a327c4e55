package release

import (
	"context"
	"fmt"
	"time"

	"github.com/iotlab/pubsub-ops/internal/git"
	"github.com/iotlab/pubsub-ops/internal/log"
	"github.com/iotlab/pubsub-ops/internal/version"
)

// Catalog lists the releases published on the remote origin.
type Catalog struct {
	repo         *git.Repository
	fetchTimeout time.Duration
	logger       log.Logger
}

// NewCatalog creates a Catalog for the given working tree handle.
func NewCatalog(repo *git.Repository, fetchTimeout time.Duration, logger log.Logger) *Catalog {
	return &Catalog{repo: repo, fetchTimeout: fetchTimeout, logger: logger}
}

// FetchAndList performs a prune-aware fetch of all remote branches and
// returns the release-labeled ones. A fetch failure or timeout returns
// ErrNetworkFailure and no list; a remote with no release branches returns
// an empty list and no error. Duplicate version labels keep their first
// position but the latest-listed ref wins.
func (c *Catalog) FetchAndList(ctx context.Context) ([]Ref, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	if err := c.repo.Fetch(fetchCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	branches, err := c.repo.RemoteBranches()
	if err != nil {
		return nil, fmt.Errorf("listing remote branches: %w", err)
	}

	refs := make([]Ref, 0, len(branches))
	byLiteral := make(map[string]int)
	for _, branch := range branches {
		literal, ok := StripPrefix(branch)
		if !ok {
			continue
		}
		ref := Ref{Version: version.Parse(literal), Branch: branch}
		if i, seen := byLiteral[literal]; seen {
			refs[i] = ref
			continue
		}
		byLiteral[literal] = len(refs)
		refs = append(refs, ref)
	}

	c.logger.Info("Found release branches", "count", len(refs))
	return refs, nil
}
