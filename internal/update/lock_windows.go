//go:build windows

package update

import "os"

// processAlive reports whether a process with the given pid exists. Windows
// FindProcess fails for dead pids, which is all the precision the stale-lock
// check needs.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
