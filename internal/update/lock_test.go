package update

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotlab/pubsub-ops/internal/testutil"
)

func newTestLock(t *testing.T) (*treeLock, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0700))
	return newTreeLock(dir, testutil.NewTestLogger(t)), dir
}

func TestTreeLockAcquireRelease(t *testing.T) {
	lock, dir := newTestLock(t)

	require.NoError(t, lock.Acquire())
	assert.FileExists(t, filepath.Join(dir, ".git", lockFileName))

	// The lock records the holder's pid for stale detection.
	data, err := os.ReadFile(filepath.Join(dir, ".git", lockFileName))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))

	lock.Release()
	assert.NoFileExists(t, filepath.Join(dir, ".git", lockFileName))
}

func TestTreeLockHeldByLiveProcess(t *testing.T) {
	lock, dir := newTestLock(t)

	// The test process itself plays the live holder.
	lockPath := filepath.Join(dir, ".git", lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600))

	err := lock.Acquire()
	require.ErrorIs(t, err, ErrLocked)
}

func TestTreeLockBreaksStaleLock(t *testing.T) {
	lock, dir := newTestLock(t)

	// A pid beyond the kernel's pid space cannot belong to a live process.
	lockPath := filepath.Join(dir, ".git", lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("999999999\n"), 0600))

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\n", os.Getpid()), string(data))
}

func TestTreeLockBreaksGarbageLock(t *testing.T) {
	lock, dir := newTestLock(t)

	lockPath := filepath.Join(dir, ".git", lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("not a pid"), 0600))

	require.NoError(t, lock.Acquire())
}

func TestTreeLockReleaseIdempotent(t *testing.T) {
	lock, _ := newTestLock(t)

	require.NoError(t, lock.Acquire())
	lock.Release()
	lock.Release()
}
