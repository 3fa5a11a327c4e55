package release

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotlab/pubsub-ops/internal/testutil"
	"github.com/iotlab/pubsub-ops/internal/testutil/fakerunner"
)

const testProbeTimeout = 5 * time.Second

func newResolverFixture(t *testing.T, dir string, runner *fakerunner.Runner) *Resolver {
	t.Helper()
	return NewResolver(openRepo(t, dir, runner), testProbeTimeout, testutil.NewTestLogger(t))
}

func TestResolveFromReleaseBranch(t *testing.T) {
	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	checkoutBranch(t, repo, "release/2.3.1")

	// The branch name wins even with a contradicting VERSION file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("9.9.9\n"), 0600))

	resolver := newResolverFixture(t, dir, fakerunner.New())
	v, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.3.1", v.String())
}

func TestResolveFromCapitalizedReleaseBranch(t *testing.T) {
	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	checkoutBranch(t, repo, "Release/1.4")

	resolver := newResolverFixture(t, dir, fakerunner.New())
	v, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4", v.String())
}

func TestResolveFromVersionFile(t *testing.T) {
	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	checkoutBranch(t, repo, "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "VERSION"), []byte("  3.1.0 \n"), 0600))

	resolver := newResolverFixture(t, dir, fakerunner.New())
	v, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", v.String())
}

func TestResolveFromDescribe(t *testing.T) {
	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	checkoutBranch(t, repo, "main")

	runner := fakerunner.New()
	runner.SetOutput("git", []string{"describe", "--tags", "--always"}, []byte("v1.2.0-3-gdeadbee\n"))

	resolver := newResolverFixture(t, dir, runner)
	v, err := resolver.Resolve(context.Background())
	require.NoError(t, err)

	// The tag is stripped of its v prefix and commit-distance suffix.
	assert.Equal(t, "1.2.0", v.String())
}

func TestResolveFallsBackToBranchName(t *testing.T) {
	dir := t.TempDir()
	repo, _ := initRepo(t, dir)
	checkoutBranch(t, repo, "develop")

	runner := fakerunner.New()
	runner.SetError("git", []string{"describe", "--tags", "--always"}, errors.New("fatal: no names found"))

	resolver := newResolverFixture(t, dir, runner)
	v, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "develop", v.String())
	assert.False(t, v.IsNumeric())
}

func TestResolveUndetectable(t *testing.T) {
	// A repository with no commits has no HEAD to read a branch from.
	dir := t.TempDir()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	runner := fakerunner.New()
	runner.SetError("git", []string{"describe", "--tags", "--always"}, errors.New("fatal: bad revision"))

	resolver := newResolverFixture(t, dir, runner)
	_, err = resolver.Resolve(context.Background())
	require.ErrorIs(t, err, ErrVersionUndetectable)
}
