package update

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/iotlab/pubsub-ops/internal/log"
)

const lockFileName = "pubsub-ops.lock"

// ErrLocked means another update mechanism holds the tree's advisory lock.
var ErrLocked = errors.New("another update is already running against this tree")

// treeLock is an on-disk advisory lock preventing two independently
// triggered update paths (timer poll, webhook, interactive) from racing
// against the same working tree. It lives inside .git so it never dirties
// the tree itself.
type treeLock struct {
	path   string
	logger log.Logger
}

func newTreeLock(treePath string, logger log.Logger) *treeLock {
	return &treeLock{path: filepath.Join(treePath, ".git", lockFileName), logger: logger}
}

// Acquire takes the lock, breaking a stale lock left by a dead process.
func (l *treeLock) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("creating lock file: %w", err)
	}

	pid, readErr := l.holderPID()
	if readErr == nil && processAlive(pid) {
		return fmt.Errorf("%w (pid %d holds %s)", ErrLocked, pid, l.path)
	}

	l.logger.Warn("Breaking stale update lock", "path", l.path, "pid", pid)
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale lock: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrLocked
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	return nil
}

// Release removes the lock file.
func (l *treeLock) Release() {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Could not remove update lock", "path", l.path, "error", err)
	}
}

func (l *treeLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (l *treeLock) holderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
