package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotlab/pubsub-ops/internal/testutil"
	"github.com/iotlab/pubsub-ops/internal/testutil/fakerunner"
)

// commitFile writes a file and commits it, returning the commit hash.
func commitFile(t *testing.T, repo *gogit.Repository, dir, name, content, message string) plumbing.Hash {
	t.Helper()

	worktree, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	_, err = worktree.Add(name)
	require.NoError(t, err)

	hash, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err)
	return hash
}

// createRepo initializes a repository with one commit.
func createRepo(t *testing.T) (string, *gogit.Repository, plumbing.Hash) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFile(t, repo, dir, "app.py", "print('hi')\n", "initial commit")
	return dir, repo, hash
}

func openTestRepo(t *testing.T, dir string) *Repository {
	t.Helper()

	repo, err := Open(dir, fakerunner.New(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return repo
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := Open(t.TempDir(), fakerunner.New(), testutil.NewTestLogger(t))
	require.Error(t, err)
}

func TestCurrentBranch(t *testing.T) {
	dir, raw, _ := createRepo(t)

	worktree, err := raw.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("release/1.0.0"),
		Create: true,
	}))

	repo := openTestRepo(t, dir)
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "release/1.0.0", branch)
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	dir, raw, hash := createRepo(t)

	worktree, err := raw.Worktree()
	require.NoError(t, err)
	require.NoError(t, worktree.Checkout(&gogit.CheckoutOptions{Hash: hash}))

	repo := openTestRepo(t, dir)
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, hash.String()[:7], branch)
}

func TestIsDirty(t *testing.T) {
	dir, _, _ := createRepo(t)
	repo := openTestRepo(t, dir)

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("print('bye')\n"), 0600))

	dirty, err = repo.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestIsDirtyUntrackedFile(t *testing.T) {
	dir, _, _ := createRepo(t)
	repo := openTestRepo(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("notes\n"), 0600))

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestFetchAndRemoteBranches(t *testing.T) {
	srcDir, src, hash := createRepo(t)
	require.NoError(t, src.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("release/1.0.0"), hash)))

	workDir := t.TempDir()
	_, err := gogit.PlainClone(workDir, false, &gogit.CloneOptions{URL: srcDir})
	require.NoError(t, err)

	repo := openTestRepo(t, workDir)

	// Publish a branch after the clone; Fetch must pick it up.
	require.NoError(t, src.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("release/1.0.1"), hash)))

	require.NoError(t, repo.Fetch(context.Background()))

	branches, err := repo.RemoteBranches()
	require.NoError(t, err)
	assert.Contains(t, branches, "release/1.0.0")
	assert.Contains(t, branches, "release/1.0.1")
	assert.NotContains(t, branches, "HEAD")
}

func TestFetchPrunesDeletedBranches(t *testing.T) {
	srcDir, src, hash := createRepo(t)
	branchRef := plumbing.NewBranchReferenceName("release/0.9.0")
	require.NoError(t, src.Storer.SetReference(plumbing.NewHashReference(branchRef, hash)))

	workDir := t.TempDir()
	_, err := gogit.PlainClone(workDir, false, &gogit.CloneOptions{URL: srcDir})
	require.NoError(t, err)

	require.NoError(t, src.Storer.RemoveReference(branchRef))

	repo := openTestRepo(t, workDir)
	require.NoError(t, repo.Fetch(context.Background()))

	branches, err := repo.RemoteBranches()
	require.NoError(t, err)
	assert.NotContains(t, branches, "release/0.9.0")
}

func TestFetchDeadRemote(t *testing.T) {
	dir, raw, _ := createRepo(t)
	_, err := raw.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{filepath.Join(t.TempDir(), "gone")},
	})
	require.NoError(t, err)

	repo := openTestRepo(t, dir)
	require.Error(t, repo.Fetch(context.Background()))
}

func TestCheckoutTrackingCreatesLocalBranch(t *testing.T) {
	srcDir, src, _ := createRepo(t)

	// Publish an updated release branch upstream.
	srcWorktree, err := src.Worktree()
	require.NoError(t, err)
	require.NoError(t, srcWorktree.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("release/1.0.1"),
		Create: true,
	}))
	commitFile(t, src, srcDir, "app.py", "print('new')\n", "release 1.0.1")

	workDir := t.TempDir()
	_, err = gogit.PlainClone(workDir, false, &gogit.CloneOptions{URL: srcDir})
	require.NoError(t, err)

	repo := openTestRepo(t, workDir)
	require.NoError(t, repo.Fetch(context.Background()))
	require.NoError(t, repo.CheckoutTracking("release/1.0.1"))

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "release/1.0.1", branch)

	content, err := os.ReadFile(filepath.Join(workDir, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('new')\n", string(content))

	// A second checkout of the now-existing local branch also works.
	require.NoError(t, repo.CheckoutTracking("release/1.0.1"))
}

func TestResetHardRestoresTree(t *testing.T) {
	srcDir, src, hash := createRepo(t)
	require.NoError(t, src.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("release/1.0.0"), hash)))

	workDir := t.TempDir()
	_, err := gogit.PlainClone(workDir, false, &gogit.CloneOptions{URL: srcDir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "app.py"), []byte("tampered\n"), 0600))

	repo := openTestRepo(t, workDir)
	require.NoError(t, repo.ResetHard("release/1.0.0"))

	content, err := os.ReadFile(filepath.Join(workDir, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(content))
}

func TestDiscardAndClean(t *testing.T) {
	dir, _, _ := createRepo(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("tampered\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.log"), []byte("junk\n"), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache", "blob"), []byte("junk\n"), 0600))

	repo := openTestRepo(t, dir)
	require.NoError(t, repo.DiscardAndClean())

	content, err := os.ReadFile(filepath.Join(dir, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(content))
	assert.NoFileExists(t, filepath.Join(dir, "stray.log"))
	assert.NoDirExists(t, filepath.Join(dir, "cache"))

	dirty, err := repo.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestDescribe(t *testing.T) {
	dir, _, _ := createRepo(t)

	runner := fakerunner.New()
	runner.SetOutput("git", []string{"describe", "--tags", "--always"}, []byte("v1.2.0-3-gdeadbee\n"))

	repo, err := Open(dir, runner, testutil.NewTestLogger(t))
	require.NoError(t, err)

	described, err := repo.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0-3-gdeadbee", described)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, dir, calls[0].Dir)
}

func TestDescribeFailure(t *testing.T) {
	dir, _, _ := createRepo(t)

	runner := fakerunner.New()
	runner.SetError("git", []string{"describe", "--tags", "--always"}, errors.New("fatal: not a git repository"))

	repo, err := Open(dir, runner, testutil.NewTestLogger(t))
	require.NoError(t, err)

	_, err = repo.Describe(context.Background())
	require.Error(t, err)
}
