package release

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/iotlab/pubsub-ops/internal/git"
	"github.com/iotlab/pubsub-ops/internal/testutil"
	"github.com/iotlab/pubsub-ops/internal/testutil/fakerunner"
)

// initRepo creates a git repository with one commit and returns the go-git
// handle plus the commit hash.
func initRepo(t *testing.T, dir string) (*gogit.Repository, plumbing.Hash) {
	t.Helper()

	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "iot_pubsub_gui.py"), []byte("print('hi')\n"), 0600))
	_, err = worktree.Add("iot_pubsub_gui.py")
	require.NoError(t, err)

	hash, err := worktree.Commit("initial commit", &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)

	return repo, hash
}

// checkoutBranch creates and checks out a branch at the current HEAD.
func checkoutBranch(t *testing.T, repo *gogit.Repository, name string) {
	t.Helper()

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	err = worktree.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	require.NoError(t, err)
}

// addBranchRef points a branch at the given commit without checking it out.
func addBranchRef(t *testing.T, repo *gogit.Repository, name string, hash plumbing.Hash) {
	t.Helper()

	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), hash)
	require.NoError(t, repo.Storer.SetReference(ref))
}

// openRepo opens a test repository through the package under test's wrapper.
func openRepo(t *testing.T, dir string, runner *fakerunner.Runner) *git.Repository {
	t.Helper()

	repo, err := git.Open(dir, runner, testutil.NewTestLogger(t))
	require.NoError(t, err)
	return repo
}

// cloneFrom clones srcDir into a fresh directory so the clone's origin is a
// plain local path.
func cloneFrom(t *testing.T, srcDir string) string {
	t.Helper()

	dir := t.TempDir()
	_, err := gogit.PlainClone(dir, false, &gogit.CloneOptions{URL: srcDir})
	require.NoError(t, err)
	return dir
}

// initRepoWithDeadRemote creates a repository whose origin points nowhere.
func initRepoWithDeadRemote(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	})
	require.NoError(t, err)
	return dir
}
