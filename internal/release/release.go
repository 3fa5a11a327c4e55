// Package release discovers installed and published release versions.
//
// Releases are published as remote branches named release/<version> or
// Release/<version>; both spellings exist in deployed fleets and are always
// recognized on read.
package release

import (
	"errors"
	"strings"

	"github.com/iotlab/pubsub-ops/internal/version"
)

// Prefixes recognized on release branch names.
var releasePrefixes = []string{"release/", "Release/"}

// ErrVersionUndetectable is returned when every version probe fails.
var ErrVersionUndetectable = errors.New("could not detect installed version from any source")

// ErrNetworkFailure marks a remote fetch that failed or timed out. A fetch
// failure never degrades to a stale release list.
var ErrNetworkFailure = errors.New("remote fetch failed")

// Ref is a discovered release: a version paired with the remote branch that
// publishes it.
type Ref struct {
	Version version.Version
	// Branch is the short branch name including the release prefix,
	// e.g. "release/1.0.1".
	Branch string
}

// RemoteName returns the fully-qualified remote branch identifier,
// e.g. "origin/release/1.0.1".
func (r Ref) RemoteName() string {
	return "origin/" + r.Branch
}

// StripPrefix removes a recognized release prefix from a branch name. The
// second return is false when the name carries no release prefix or nothing
// follows it.
func StripPrefix(branch string) (string, bool) {
	for _, prefix := range releasePrefixes {
		if strings.HasPrefix(branch, prefix) {
			rest := strings.TrimSpace(strings.TrimPrefix(branch, prefix))
			if rest != "" {
				return rest, true
			}
		}
	}
	return "", false
}

// Latest returns the highest-versioned ref, false when refs is empty.
func Latest(refs []Ref) (Ref, bool) {
	if len(refs) == 0 {
		return Ref{}, false
	}
	best := refs[0]
	for _, ref := range refs[1:] {
		if version.Compare(ref.Version, best.Version) > 0 {
			best = ref
		}
	}
	return best, true
}
